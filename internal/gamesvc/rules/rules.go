package rules

import "strconv"

// card colours
const (
	Red    = "red"
	Blue   = "blue"
	Green  = "green"
	Yellow = "yellow"
	Wild   = "wild"
)

// card values that carry an effect
const (
	Skip         = "skip"
	Reverse      = "reverse"
	DrawTwo      = "draw_two"
	WildCard     = "wild"
	WildDrawFour = "wild_draw_four"
)

// move play types as stored in the move log
const (
	PlayTypePlay    = "play"
	PlayTypeDraw    = "draw"
	PlayTypeSkip    = "skip"
	PlayTypeReverse = "reverse"
)

var SuitColors = []string{Red, Blue, Green, Yellow}

// Face is a (color, value) deck-card definition. Copy distinguishes the
// duplicates a standard deck carries for the same face.
type Face struct {
	Color string `json:"color" db:"color"`
	Value string `json:"value" db:"value"`
	Copy  int    `json:"-" db:"copy"`
}

func (f Face) String() string {
	return f.Color + "-" + f.Value
}

func (f Face) IsWild() bool {
	return f.Color == Wild
}

func (f Face) IsAction() bool {
	switch f.Value {
	case Skip, Reverse, DrawTwo, WildCard, WildDrawFour:
		return true
	}
	return false
}

// Catalog returns the 108 definitions of a standard deck in a fixed order.
func Catalog() []Face {
	faces := make([]Face, 0, 108)
	for _, c := range SuitColors {
		faces = append(faces, Face{Color: c, Value: "0", Copy: 1})
		for dup := 1; dup <= 2; dup++ {
			for n := 1; n <= 9; n++ {
				faces = append(faces, Face{Color: c, Value: strconv.Itoa(n), Copy: dup})
			}
			for _, v := range []string{Skip, Reverse, DrawTwo} {
				faces = append(faces, Face{Color: c, Value: v, Copy: dup})
			}
		}
	}
	for dup := 1; dup <= 4; dup++ {
		faces = append(faces, Face{Color: Wild, Value: WildCard, Copy: dup})
		faces = append(faces, Face{Color: Wild, Value: WildDrawFour, Copy: dup})
	}
	return faces
}

// DrawAmount is the number of cards the next player is forced to draw.
func DrawAmount(value string) int {
	switch value {
	case DrawTwo:
		return 2
	case WildDrawFour:
		return 4
	}
	return 0
}

// PlayType classifies a played card for the move log. Draw effects stay
// plain plays; their amount is recorded separately.
func PlayType(value string) string {
	switch value {
	case Reverse:
		return PlayTypeReverse
	case Skip:
		return PlayTypeSkip
	}
	return PlayTypePlay
}

// IsStarter reports whether a face may open the discard pile.
func IsStarter(f Face) bool {
	return !f.IsWild() && !f.IsAction()
}

func ValidColor(c string) bool {
	for _, s := range SuitColors {
		if s == c {
			return true
		}
	}
	return false
}

// CanPlay reports whether card may be put on top. topColor is the colour in
// force: the top card's own colour, or the colour chosen for a wild. A nil
// top means the pile is empty and anything goes.
func CanPlay(card Face, top *Face, topColor string) bool {
	if top == nil || card.IsWild() {
		return true
	}
	if top.IsWild() && topColor == "" {
		return true
	}
	return card.Color == topColor || card.Value == top.Value
}
