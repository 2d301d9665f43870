// Package styles holds the terminal color palette and lipgloss styles shared
// by the interactive prompt and the CLI's table output.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray
	BlueColor      = lipgloss.Color("#60A5FA")
)

var (
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)
	Text      = lipgloss.NewStyle().Foreground(TextColor)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		MarginBottom(1)

	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	HelpKey = lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Bold(true)

	// TableHeader styles the column titles of `lockstep list`.
	TableHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			PaddingRight(2)

	TableCell = lipgloss.NewStyle().
			Foreground(TextColor).
			PaddingRight(2)

	ConflictBanner = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor).
			Background(ErrorColor).
			Padding(0, 1)

	PromptBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			Padding(1, 2)

	ItemSelected = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)
)

// OperationColor returns the color used to render a lock's operation kind.
func OperationColor(op string) lipgloss.Color {
	switch op {
	case "read":
		return BlueColor
	case "write":
		return WarningColor
	case "modify":
		return ErrorColor
	default:
		return MutedColor
	}
}

// StrategyColor returns the color used to render a resolution strategy.
func StrategyColor(strategy string) lipgloss.Color {
	switch strategy {
	case "sequential":
		return SecondaryColor
	case "merge":
		return BlueColor
	case "manual":
		return WarningColor
	case "cancel":
		return ErrorColor
	default:
		return MutedColor
	}
}
