package platform

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NoticeKind selects the style of a notification dialog
type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeWarning NoticeKind = "warning"
	NoticeError   NoticeKind = "error"
)

// ErrPromptCancelled is returned when the user dismisses a dialog
var ErrPromptCancelled = errors.New("prompt cancelled")

// ErrInvalidInput is returned when the user enters something that is not an integer
var ErrInvalidInput = errors.New("input is not an integer")

// Prompter shows modal dialogs to the user
type Prompter interface {
	AskInt(ctx context.Context, title, text string) (int, error)
	Notify(ctx context.Context, kind NoticeKind, text string)
}

// NewPrompter returns a dialog implementation for the current desktop:
// zenity where available, AppleScript dialogs on macOS.
func NewPrompter(logger *zap.Logger) (Prompter, error) {
	if commandExists("zenity") {
		return &zenityPrompter{logger: logger}, nil
	}
	if runtime.GOOS == "darwin" && commandExists("osascript") {
		return &appleScriptPrompter{logger: logger}, nil
	}
	return nil, errors.Errorf("no dialog tool available on %s", runtime.GOOS)
}

type zenityPrompter struct {
	logger *zap.Logger
}

func (z *zenityPrompter) AskInt(ctx context.Context, title, text string) (int, error) {
	out, err := exec.CommandContext(ctx, "zenity", "--entry", "--title="+title, "--text="+text).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return 0, ErrPromptCancelled
		}
		return 0, errors.Wrap(err, "zenity failed")
	}
	return parseIntAnswer(string(out))
}

func (z *zenityPrompter) Notify(ctx context.Context, kind NoticeKind, text string) {
	args := []string{"--" + string(kind), "--text=" + text}
	if kind == NoticeInfo {
		args = append(args, "--timeout=3")
	}
	if err := exec.CommandContext(ctx, "zenity", args...).Run(); err != nil {
		z.logger.Debug("zenity notification closed", zap.Error(err))
	}
}

type appleScriptPrompter struct {
	logger *zap.Logger
}

func (a *appleScriptPrompter) AskInt(ctx context.Context, title, text string) (int, error) {
	script := fmt.Sprintf(`text returned of (display dialog %s default answer "" with title %s)`,
		appleScriptString(text), appleScriptString(title))
	out, err := exec.CommandContext(ctx, "osascript", "-e", script).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return 0, ErrPromptCancelled
		}
		return 0, errors.Wrap(err, "osascript failed")
	}
	return parseIntAnswer(string(out))
}

func (a *appleScriptPrompter) Notify(ctx context.Context, kind NoticeKind, text string) {
	script := fmt.Sprintf(`display dialog %s buttons {"OK"} default button "OK"`, appleScriptString(text))
	if kind == NoticeInfo {
		script += " giving up after 3"
	}
	if err := exec.CommandContext(ctx, "osascript", "-e", script).Run(); err != nil {
		a.logger.Debug("osascript notification closed", zap.Error(err))
	}
}

func parseIntAnswer(out string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, ErrInvalidInput
	}
	return n, nil
}

func appleScriptString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
