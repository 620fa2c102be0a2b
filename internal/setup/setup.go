// Package setup holds the interactive first-run wizard shared by the stock
// agent and vespactl.
package setup

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/vespa-garage/vespa-admin/config"
	"github.com/vespa-garage/vespa-admin/internal/storage"
	"golang.org/x/term"
)

// telegramAPIURL is replaced in tests.
var telegramAPIURL = "https://api.telegram.org"

// Options selects which questions the wizard asks.
type Options struct {
	// Title is shown above the form.
	Title string
	// WithTelegram asks for the bot token and alert chat ID.
	WithTelegram bool
	// DoneMessage is printed after the config is saved.
	DoneMessage string
}

// IsInteractiveTerminal reports whether both stdin and stdout are terminals.
func IsInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// RunWizard collects configuration interactively and writes config.env.
// The values are also exported into the current process. Returns false if
// the user cancelled or saving failed.
func RunWizard(opts Options) bool {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	title := opts.Title
	if title == "" {
		title = "🛵 Vespa Admin - Setup"
	}
	fmt.Println()
	fmt.Println(titleStyle.Render(title))
	fmt.Println()

	baseURL := os.Getenv("VESPA_API_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8000/api"
	}
	backend := os.Getenv("VESPA_CREDENTIAL_STORE")
	if backend == "" {
		backend = storage.BackendSQLite
	}
	var botToken, chatID string

	groups := []*huh.Group{
		huh.NewGroup(
			huh.NewInput().
				Title("Shop API base URL").
				Description("Root of the admin backend API, e.g. https://shop.example.com/api").
				Value(&baseURL).
				Validate(validateBaseURL),
			huh.NewSelect[string]().
				Title("Credential store").
				Description("Where the login session is kept between runs").
				Options(
					huh.NewOption("SQLite file (recommended)", storage.BackendSQLite),
					huh.NewOption("Redis (shared between hosts)", storage.BackendRedis),
					huh.NewOption("Memory (log in every run)", storage.BackendMemory),
				).
				Value(&backend),
		),
	}

	if opts.WithTelegram {
		groups = append(groups, huh.NewGroup(
			huh.NewInput().
				Title("Telegram Bot Token").
				Description("Message @BotFather on Telegram → /newbot → copy token").
				Value(&botToken).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("token is required")
					}
					return validateTelegramToken(s)
				}),
			huh.NewInput().
				Title("Alert chat ID").
				Description("Chat or group that receives stock alerts. Message @userinfobot to get your ID").
				Value(&chatID).
				Validate(validateChatID),
		))
	}

	err := huh.NewForm(groups...).WithTheme(huh.ThemeBase16()).Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("\nSetup cancelled.")
			return false
		}
		fmt.Printf("\nError: %v\n", err)
		return false
	}

	// Keep an existing key; a new one would make stored credentials unreadable.
	tokenKey := os.Getenv("VESPA_TOKEN_KEY")
	if tokenKey == "" {
		tokenKey = GenerateTokenKey()
	}

	values := map[string]string{
		"VESPA_API_BASE_URL":     baseURL,
		"VESPA_TOKEN_KEY":        tokenKey,
		"VESPA_CREDENTIAL_STORE": backend,
		"TELEGRAM_BOT_TOKEN":     botToken,
		"TELEGRAM_CHAT_ID":       chatID,
	}

	configPath, err := config.WriteEnvFile(values)
	if err != nil {
		fmt.Printf("\nError saving configuration: %v\n", err)
		WaitOnWindows()
		return false
	}

	for k, v := range values {
		if v != "" {
			os.Setenv(k, v)
		}
	}

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	pathStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Configuration saved"))
	fmt.Println(pathStyle.Render("  " + configPath))
	fmt.Println()
	if opts.DoneMessage != "" {
		fmt.Println(opts.DoneMessage)
		fmt.Println()
	}

	return true
}

// GenerateTokenKey returns a random passphrase for VESPA_TOKEN_KEY.
func GenerateTokenKey() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("vespa-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}

func validateBaseURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return errors.New("not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("URL must start with http:// or https://")
	}
	if u.Host == "" {
		return errors.New("URL must include a host")
	}
	return nil
}

func validateChatID(s string) error {
	if s == "" {
		return errors.New("chat ID is required")
	}
	if _, err := strconv.ParseInt(s, 10, 64); err != nil {
		return errors.New("must be a number")
	}
	return nil
}

// validateTelegramToken checks the token with the getMe API.
func validateTelegramToken(token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description,omitempty"`
	}

	res, err := resty.New().R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&result).
		Get(fmt.Sprintf("%s/bot%s/getMe", telegramAPIURL, token))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.New("connection timed out - check your internet")
		}
		return errors.New("connection failed - check your internet")
	}

	if !result.OK {
		if result.Description != "" {
			return errors.New(result.Description)
		}
		return fmt.Errorf("token rejected by Telegram (HTTP %d)", res.StatusCode())
	}

	return nil
}

// WaitOnWindows pauses so users can read errors before the console window
// closes.
func WaitOnWindows() {
	if runtime.GOOS == "windows" {
		fmt.Println()
		fmt.Println("Press Enter to exit...")
		fmt.Scanln()
	}
}

// FatalWithWait logs an error, waits on Windows and exits.
func FatalWithWait(format string, args ...any) {
	log.Error().Msgf(format, args...)
	WaitOnWindows()
	os.Exit(1)
}
