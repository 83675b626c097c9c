package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrBadCursor is returned when a pagination cursor cannot be decoded.
var ErrBadCursor = errors.New("malformed pagination cursor")

// Cursor identifies a fixed position in a (created_at, id) ordered stream.
// Its wire form is "<RFC3339Nano timestamp>|<numeric id>"; the timestamp may
// itself contain no '|', so the string splits unambiguously on the first one.
type Cursor struct {
	CreatedAt time.Time
	ID        int64
}

// Encode renders the cursor in its wire form.
func (c Cursor) Encode() string {
	return c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + strconv.FormatInt(c.ID, 10)
}

// ParseCursor decodes a wire-form cursor. Any structural defect, an
// unparseable timestamp or a non-numeric id, yields ErrBadCursor.
func ParseCursor(s string) (Cursor, error) {
	ts, idStr, found := strings.Cut(s, "|")
	if !found || ts == "" || idStr == "" {
		return Cursor{}, fmt.Errorf("%w: %q", ErrBadCursor, s)
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: bad timestamp in %q", ErrBadCursor, s)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: bad id in %q", ErrBadCursor, s)
	}
	return Cursor{CreatedAt: t, ID: id}, nil
}
