package icon

// Icon identifies a symbol in the registry.
type Icon int

const (
	Fail Icon = iota + 1
	Success
	Check
	Cross
	Mark
	Play
	Pause
	Buffering
	Loop
	Subtitle
	Navigation
	Warning
	Progress
	History
	Config
)

var icons = map[Icon]*iconDef{
	Fail: {
		emoji:   "💀",
		nerd:    "",
		plain:   "Error",
		kaomoji: "(×﹏×)",
		squares: "🟥",
	},
	Success: {
		emoji:   "🎉",
		nerd:    "",
		plain:   "Success",
		kaomoji: "(ᵔ◡ᵔ)",
		squares: "🟩",
	},
	Check: {
		emoji:   "✅",
		nerd:    "",
		plain:   "+",
		kaomoji: "(✓)",
		squares: "🟩",
	},
	Cross: {
		emoji:   "❌",
		nerd:    "",
		plain:   "-",
		kaomoji: "(✗)",
		squares: "🟥",
	},
	Mark: {
		emoji:   "🔖",
		nerd:    "",
		plain:   "*",
		kaomoji: "(*)",
		squares: "🟨",
	},
	Play: {
		emoji:   "▶️",
		nerd:    "",
		plain:   ">",
		kaomoji: "(▷)",
		squares: "🟩",
	},
	Pause: {
		emoji:   "⏸️",
		nerd:    "",
		plain:   "||",
		kaomoji: "(‖)",
		squares: "🟨",
	},
	Buffering: {
		emoji:   "⏳",
		nerd:    "",
		plain:   "...",
		kaomoji: "(・_・;)",
		squares: "🟧",
	},
	Loop: {
		emoji:   "🔁",
		nerd:    "",
		plain:   "@",
		kaomoji: "(↻)",
		squares: "🟦",
	},
	Subtitle: {
		emoji:   "💬",
		nerd:    "",
		plain:   "CC",
		kaomoji: "(´･ω･`)",
		squares: "🟪",
	},
	Navigation: {
		emoji:   "🧭",
		nerd:    "",
		plain:   "->",
		kaomoji: "(→)",
		squares: "🟫",
	},
	Warning: {
		emoji:   "⚠️",
		nerd:    "",
		plain:   "!",
		kaomoji: "(!_!)",
		squares: "🟧",
	},
	Progress: {
		emoji:   "👨‍💻",
		nerd:    "",
		plain:   "~",
		kaomoji: "(￣ω￣)",
		squares: "🟦",
	},
	History: {
		emoji:   "📜",
		nerd:    "",
		plain:   "H",
		kaomoji: "(¬‿¬)",
		squares: "🟫",
	},
	Config: {
		emoji:   "⚙️",
		nerd:    "",
		plain:   "#",
		kaomoji: "(⚙)",
		squares: "⬛",
	},
}
