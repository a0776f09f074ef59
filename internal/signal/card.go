package signal

import (
	"fmt"
	"strings"
)

// Node is one element of a card tree. The tree is declarative: the chat
// widget renders it, this service never executes the actions.
type Node struct {
	Type     string  `json:"type"`
	Text     string  `json:"text,omitempty"`
	Emphasis string  `json:"emphasis,omitempty"`
	Action   *Action `json:"action,omitempty"`
	Children []Node  `json:"children,omitempty"`
}

// Action is a button descriptor. insert_text places the value into the chat
// input; open_url opens the value in a new context.
type Action struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

const (
	ActionInsertText = "insert_text"
	ActionOpenURL    = "open_url"
)

// Tier buckets a 0..100 score into the badge emphasis attribute.
func Tier(score int) string {
	switch {
	case score > 80:
		return "high"
	case score > 60:
		return "medium"
	default:
		return "low"
	}
}

// Render maps a record to its card tree. Pure: same record, same tree.
func Render(r Record) Node {
	lenses := r.Lenses
	if lenses == "" {
		lenses = DefaultLenses
	}
	tier := Tier(r.Score)

	return Node{
		Type: "card",
		Children: []Node{
			{Type: "row", Children: []Node{
				{Type: "icon", Text: "📡"},
				{Type: "title", Text: r.Title},
				{Type: "badge", Text: strings.ToUpper(tier), Emphasis: tier},
			}},
			{Type: "divider"},
			{Type: "body", Children: []Node{
				{Type: "caption", Text: strings.ToUpper(r.Archetype)},
				{Type: "badge", Text: fmt.Sprintf("%d/100", r.Score), Emphasis: tier},
				{Type: "title", Text: r.Title},
				{Type: "text", Text: r.Hook},
				{Type: "row", Children: []Node{
					{Type: "tag", Text: lenses},
				}},
			}},
			{Type: "row", Children: []Node{
				{Type: "button", Text: "Discuss", Action: &Action{
					Kind:  ActionInsertText,
					Value: fmt.Sprintf("%s: %s", r.Title, r.Hook),
				}},
				{Type: "button", Text: "View source", Action: &Action{
					Kind:  ActionOpenURL,
					Value: r.SourceURL,
				}},
			}},
		},
	}
}
