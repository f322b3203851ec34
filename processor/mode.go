package processor

import "strings"

// Mode names a text-transformation recipe. A mode with no entry in the
// active template table is an identity transform, same as ModeRaw.
type Mode string

const (
	// Utterance modes.
	ModeClean   Mode = "clean"
	ModeRewrite Mode = "rewrite"
	ModeBullets Mode = "bullets"
	ModeEmail   Mode = "email"
	ModeRaw     Mode = "raw"

	// Document modes.
	ModeOrganize     Mode = "organize"
	ModeProfessional Mode = "professional"
	ModeSummarize    Mode = "summarize"
	ModeActionItems  Mode = "action_items"
)

func ParseMode(s string) Mode {
	return Mode(strings.ToLower(strings.TrimSpace(s)))
}

func UtteranceModes() []Mode {
	return []Mode{ModeClean, ModeRewrite, ModeBullets, ModeEmail, ModeRaw}
}

func DocumentModes() []Mode {
	return []Mode{ModeOrganize, ModeProfessional, ModeSummarize, ModeActionItems}
}
