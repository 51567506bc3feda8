package util

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/manifoldco/promptui"
)

var (
	IsDebug bool

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true).
			Underline(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4")).
			Bold(true)

	optionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#45B7D1")).
			Italic(true)

	exampleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4757")).
			Bold(true)

	debugErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FF4757")).
			Padding(1, 2)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA726")).
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF69B4")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)
)

// ErrEmptyAnimeName is returned when the user supplies a blank title
var ErrEmptyAnimeName = fmt.Errorf("anime name cannot be empty")

// SetDebugMode sets the debug mode
func SetDebugMode(debug bool) {
	IsDebug = debug
}

// GetAnimeName gets the anime name from the positional arguments or asks for it
func GetAnimeName() (string, error) {
	if len(flag.Args()) > 0 {
		animeName := strings.TrimSpace(strings.Join(flag.Args(), " "))
		fmt.Println(titleStyle.Render("🎯 Target Anime: " + animeName))
		if animeName == "" {
			return "", ErrEmptyAnimeName
		}
		return animeName, nil
	}

	fmt.Println(helpStyle.Render("🔍 Search for an anime cover"))
	return getUserInput("Enter anime name")
}

// ErrorHandler returns a stylized error message
func ErrorHandler(err error) string {
	if IsDebug {
		header := errorStyle.Render("🚨 DEBUG ERROR 🔍")
		return fmt.Sprintf("%s\n%s", header, debugErrorStyle.Render(fmt.Sprintf("%+v", err)))
	}

	styledError := errorStyle.Render(fmt.Sprintf("❌ %v", err))
	styledHint := warningStyle.Render("💡 run the program with -debug to see details")
	return fmt.Sprintf("%s\n%s", styledError, styledHint)
}

// Helper prints the help message
func Helper() {
	fmt.Println(titleStyle.Render("🎌 anime-cover - multi-source anime cover crawler"))
	fmt.Println()
	fmt.Println(helpStyle.Render("📖 Usage:"))
	fmt.Println("  anime-cover")
	fmt.Println("  anime-cover " + optionStyle.Render("[options]") + " " + exampleStyle.Render("[anime name]"))
	fmt.Println()
	fmt.Println(helpStyle.Render("⚙️  Options:"))
	options := [][2]string{
		{"-debug", "🐛 Enable debug logging"},
		{"-help, -h", "📚 Show this help message"},
		{"-version", "ℹ️  Show version information"},
		{"-config <file>", "🗂  Load settings from a config file"},
		{"-sources a,b", "🌐 Only query the listed sources"},
		{"-out <dir>", "📁 Directory for downloaded covers"},
		{"-all", "📦 Download every candidate without asking"},
		{"-top", "🥇 Download the best candidate without asking"},
		{"-pick", "👉 Choose the candidate to download interactively"},
		{"-perf", "⏱  Print a timing report after the search"},
	}
	for _, opt := range options {
		fmt.Printf("  %-26s %s\n", optionStyle.Render(opt[0]), opt[1])
	}
	fmt.Println()
	fmt.Println("  Example: " + exampleStyle.Render(`anime-cover -sources anilist,bangumi "Frieren"`))
	fmt.Println()
}

// getUserInput prompts the user for the anime name and returns it
func getUserInput(label string) (string, error) {
	if runtime.GOOS == "windows" {
		return getSimpleInput(label)
	}

	prompt := promptui.Prompt{
		Label: promptStyle.Render("🎮 " + label),
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return ErrEmptyAnimeName
			}
			return nil
		},
	}

	animeName, err := prompt.Run()
	if err != nil {
		return "", err
	}
	animeName = strings.TrimSpace(animeName)

	fmt.Println(successStyle.Render("✓ Anime name received: " + animeName))
	return animeName, nil
}

// getSimpleInput provides a fallback input method for Windows
func getSimpleInput(label string) (string, error) {
	fmt.Print(promptStyle.Render("🎮 " + label + ": "))

	reader := bufio.NewReader(os.Stdin)
	animeName, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	animeName = strings.TrimSpace(animeName)
	if animeName == "" {
		return "", ErrEmptyAnimeName
	}

	fmt.Println(successStyle.Render("✓ Anime name received: " + animeName))
	return animeName, nil
}
