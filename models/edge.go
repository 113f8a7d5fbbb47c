package models

import "time"

type NodeType string

const (
	NodeCategory NodeType = "category"
	NodeRound    NodeType = "round"
	NodeFormat   NodeType = "format"
	NodeGroup    NodeType = "group"
	NodeMatch    NodeType = "match"
)

type Handle string

const (
	HandleRoundOut      Handle = "round-out"
	HandleRoundIn       Handle = "round-in"
	HandleFormatOut     Handle = "format-out"
	HandleRoundFormatIn Handle = "round-format-in"
	HandleCategoryOut   Handle = "category-out"
	HandleWinnerOut     Handle = "match-winner-out"
	HandleLoserOut      Handle = "match-loser-out"
	HandleSlotIn        Handle = "match-slot-in"
	HandleSlotInHome    Handle = "match-slot-in-home"
	HandleSlotInAway    Handle = "match-slot-in-away"
)

// Edge is a typed directed link between two nodes of a category's bracket graph.
type Edge struct {
	ID           int       `json:"id" db:"id"`
	CategoryID   int       `json:"category_id" db:"category_id"`
	SourceType   NodeType  `json:"source_type" db:"source_type"`
	SourceID     int       `json:"source_id" db:"source_id"`
	SourceHandle Handle    `json:"source_handle" db:"source_handle"`
	TargetType   NodeType  `json:"target_type" db:"target_type"`
	TargetID     int       `json:"target_id" db:"target_id"`
	TargetHandle Handle    `json:"target_handle" db:"target_handle"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// IsMatchRouting is true for winner/loser edges between two matches.
func (e *Edge) IsMatchRouting() bool {
	return e.SourceType == NodeMatch && e.TargetType == NodeMatch &&
		(e.SourceHandle == HandleWinnerOut || e.SourceHandle == HandleLoserOut)
}

var allowedHandlePairs = map[Handle]map[Handle]bool{
	HandleRoundOut:    {HandleRoundIn: true},
	HandleFormatOut:   {HandleRoundFormatIn: true},
	HandleCategoryOut: {HandleRoundIn: true},
	HandleWinnerOut:   {HandleSlotIn: true, HandleSlotInHome: true, HandleSlotInAway: true},
	HandleLoserOut:    {HandleSlotIn: true, HandleSlotInHome: true, HandleSlotInAway: true},
}

var handleNodeTypes = map[Handle]NodeType{
	HandleRoundOut:      NodeRound,
	HandleRoundIn:       NodeRound,
	HandleFormatOut:     NodeFormat,
	HandleRoundFormatIn: NodeRound,
	HandleCategoryOut:   NodeCategory,
	HandleWinnerOut:     NodeMatch,
	HandleLoserOut:      NodeMatch,
	HandleSlotIn:        NodeMatch,
	HandleSlotInHome:    NodeMatch,
	HandleSlotInAway:    NodeMatch,
}

// HasValidHandles checks the handle pair and that each handle sits on the
// node type it belongs to.
func (e *Edge) HasValidHandles() bool {
	targets, ok := allowedHandlePairs[e.SourceHandle]
	if !ok || !targets[e.TargetHandle] {
		return false
	}
	return handleNodeTypes[e.SourceHandle] == e.SourceType &&
		handleNodeTypes[e.TargetHandle] == e.TargetType
}
