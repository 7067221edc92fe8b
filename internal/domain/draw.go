package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// MaxBudget is the largest accepted gift budget.
const MaxBudget = 1_000_000

// LegacyDrawName names the synthetic draw built from a legacy flat pairs file.
const LegacyDrawName = "Legacy"

// Draw is one named Secret Santa round ("group" in the persisted document)
type Draw struct {
	Name         string            `json:"name"`
	Active       bool              `json:"active"`
	Participants []string          `json:"participants"`
	Pairs        map[string]string `json:"pairs"`
	Purchased    map[string]bool   `json:"purchased"`
	Created      time.Time         `json:"created"`
	Budget       *float64          `json:"budget,omitempty"`
	Deadline     *time.Time        `json:"deadline,omitempty"`
}

// DrawKey is the case-insensitive identity of a draw name.
func DrawKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Recipient returns the recipient assigned to giver.
func (d *Draw) Recipient(giver string) (string, bool) {
	r, ok := d.Pairs[giver]
	return r, ok
}

// HasParticipant reports whether username takes part in the draw.
func (d *Draw) HasParticipant(username string) bool {
	for _, p := range d.Participants {
		if p == username {
			return true
		}
	}
	return false
}

// UnmarshalJSON tolerates an empty list where an object is expected for pairs
// and purchased, which is how an empty PHP array used to be written.
func (d *Draw) UnmarshalJSON(data []byte) error {
	type rawDraw Draw
	aux := struct {
		*rawDraw
		Pairs     json.RawMessage `json:"pairs"`
		Purchased json.RawMessage `json:"purchased"`
	}{rawDraw: (*rawDraw)(d)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if err := decodeObjectOrEmpty(aux.Pairs, &d.Pairs); err != nil {
		return fmt.Errorf("pairs: %w", err)
	}
	if err := decodeObjectOrEmpty(aux.Purchased, &d.Purchased); err != nil {
		return fmt.Errorf("purchased: %w", err)
	}
	d.normalize()
	return nil
}

func decodeObjectOrEmpty[T any](raw json.RawMessage, dst *T) error {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 || bytes.Equal(t, []byte("null")) || bytes.Equal(t, []byte("[]")) {
		return nil
	}
	return json.Unmarshal(t, dst)
}

// normalize canonicalizes usernames read from older documents and makes
// sure the maps exist.
func (d *Draw) normalize() {
	for i, p := range d.Participants {
		d.Participants[i] = NormalizeUsername(p)
	}
	pairs := make(map[string]string, len(d.Pairs))
	for k, v := range d.Pairs {
		pairs[NormalizeUsername(k)] = NormalizeUsername(v)
	}
	d.Pairs = pairs
	purchased := make(map[string]bool, len(d.Participants))
	for k, v := range d.Purchased {
		purchased[NormalizeUsername(k)] = v
	}
	d.Purchased = purchased
	if d.Participants == nil {
		d.Participants = []string{}
	}
}

// ValidBudget reports whether b is a usable budget value.
func ValidBudget(b float64) bool {
	return !math.IsNaN(b) && !math.IsInf(b, 0) && b >= 0 && b <= MaxBudget
}

// ParseDeadline reads a YYYY-MM-DD date as UTC midnight. Empty input yields nil.
func ParseDeadline(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		return nil, NewDrawError(DrawInvalidDeadline, s)
	}
	return &t, nil
}

// DrawFile is the persisted draws document: {"groups": [...]}.
//
// Decoding also accepts the legacy shape where the whole file is a flat
// giver -> recipient map; it is normalized into a single Legacy draw here
// so nothing downstream ever sees the old layout.
type DrawFile struct {
	Groups []Draw `json:"groups"`
}

// Index returns the position of the draw whose name matches case-insensitively, or -1.
func (f *DrawFile) Index(name string) int {
	key := DrawKey(name)
	for i := range f.Groups {
		if DrawKey(f.Groups[i].Name) == key {
			return i
		}
	}
	return -1
}

// Active returns the active draw, if any.
func (f *DrawFile) Active() (*Draw, bool) {
	for i := range f.Groups {
		if f.Groups[i].Active {
			return &f.Groups[i], true
		}
	}
	return nil, false
}

// Activate marks the draw at idx active and every other draw inactive.
func (f *DrawFile) Activate(idx int) {
	for i := range f.Groups {
		f.Groups[i].Active = i == idx
	}
}

// MarshalJSON always writes the canonical shape.
func (f DrawFile) MarshalJSON() ([]byte, error) {
	groups := f.Groups
	if groups == nil {
		groups = []Draw{}
	}
	return json.Marshal(struct {
		Groups []Draw `json:"groups"`
	}{Groups: groups})
}

// UnmarshalJSON detects the document shape once and normalizes it.
func (f *DrawFile) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		f.Groups = nil
		return nil
	case len(trimmed) > 0 && trimmed[0] == '[':
		// an empty list is what an empty PHP array encodes to
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		if len(items) != 0 {
			return fmt.Errorf("draws document: unexpected list with %d items", len(items))
		}
		f.Groups = nil
		return nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return err
	}
	if raw, ok := probe["groups"]; ok {
		var groups []Draw
		if err := json.Unmarshal(raw, &groups); err != nil {
			return fmt.Errorf("draws document: %w", err)
		}
		f.Groups = groups
		return nil
	}
	if len(probe) == 0 {
		f.Groups = nil
		return nil
	}

	draw, err := decodeLegacyPairs(trimmed)
	if err != nil {
		return err
	}
	f.Groups = []Draw{draw}
	return nil
}

// decodeLegacyPairs reads a flat giver -> recipient object keeping file order.
func decodeLegacyPairs(data []byte) (Draw, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return Draw{}, err
	}

	// Created stays zero: the flat format has no timestamp and the value
	// must not change between reads.
	draw := Draw{
		Name:      LegacyDrawName,
		Active:    true,
		Pairs:     map[string]string{},
		Purchased: map[string]bool{},
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Draw{}, err
		}
		var recipient string
		if err := dec.Decode(&recipient); err != nil {
			return Draw{}, fmt.Errorf("legacy pairs: %w", err)
		}
		giver := NormalizeUsername(keyTok.(string))
		if _, dup := draw.Pairs[giver]; !dup {
			draw.Participants = append(draw.Participants, giver)
		}
		draw.Pairs[giver] = NormalizeUsername(recipient)
		draw.Purchased[giver] = false
	}
	if _, err := dec.Token(); err != nil {
		return Draw{}, err
	}
	return draw, nil
}
