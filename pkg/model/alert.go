package model

// AlertDef is one row of the read-only alert catalog distributed to
// privileged clients: a canned message with its severity color, its
// position in the picker, and an optional keyboard shortcut.
type AlertDef struct {
	Text      string `json:"text" yaml:"text"`
	Color     string `json:"color" yaml:"color"`
	SortIndex int    `json:"sort_index" yaml:"sort_index"`
	Shortcut  string `json:"shortcut,omitempty" yaml:"shortcut,omitempty"`
}

// ToRecord converts the row to its stored document form.
func (a AlertDef) ToRecord() Record {
	rec := Record{
		"text":       a.Text,
		"color":      a.Color,
		"sort_index": a.SortIndex,
	}
	if a.Shortcut != "" {
		rec["shortcut"] = a.Shortcut
	}
	return rec
}
