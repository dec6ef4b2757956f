// Package main is the keyboard plugin. It turns virtual key presses into
// real keystrokes with AppleScript on macOS and xdotool on Linux.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request is the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Key    string          `json:"key"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Response is the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// KeystrokeParams are the binding config for keystroke and shortcut.
type KeystrokeParams struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

var appleModifiers = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

var xdotoolModifiers = map[string]string{
	"command": "super",
	"cmd":     "super",
	"option":  "alt",
	"alt":     "alt",
	"control": "ctrl",
	"ctrl":    "ctrl",
	"shift":   "shift",
}

// namedKeys maps virtual key ids to the character they type.
var namedKeys = map[string]string{
	"space": " ",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	var err error
	switch req.Action {
	case "type":
		err = handleType(req.Key)
	case "keystroke", "shortcut":
		err = handleKeystroke(req.Config)
	default:
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}
	if err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	writeSuccessResponse()
}

// handleType types the character for a virtual key id.
func handleType(key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	if ch, ok := namedKeys[key]; ok {
		key = ch
	}
	return sendKeystroke(strings.ToLower(key), nil)
}

func handleKeystroke(config json.RawMessage) error {
	var p KeystrokeParams
	if err := json.Unmarshal(config, &p); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if p.Key == "" {
		return fmt.Errorf("key is required")
	}
	return sendKeystroke(p.Key, p.Modifiers)
}

func sendKeystroke(key string, modifiers []string) error {
	switch runtime.GOOS {
	case "darwin":
		return run("osascript", "-e", buildAppleScript(key, modifiers))
	case "linux":
		return run("xdotool", buildXdotoolArgs(key, modifiers)...)
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
}

// appleScriptEscaper quotes a key for an AppleScript string literal.
// Backslashes must be escaped before quotes.
var appleScriptEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// buildAppleScript generates an AppleScript for the key and modifiers.
func buildAppleScript(key string, modifiers []string) string {
	var mods []string
	for _, mod := range modifiers {
		if m, ok := appleModifiers[strings.ToLower(mod)]; ok {
			mods = append(mods, m)
		}
	}

	escaped := appleScriptEscaper.Replace(key)
	if len(mods) == 0 {
		return fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, escaped)
	}
	return fmt.Sprintf(`tell application "System Events" to keystroke "%s" using {%s}`, escaped, strings.Join(mods, ", "))
}

// buildXdotoolArgs generates xdotool arguments for the key and modifiers.
func buildXdotoolArgs(key string, modifiers []string) []string {
	var mods []string
	for _, mod := range modifiers {
		if m, ok := xdotoolModifiers[strings.ToLower(mod)]; ok {
			mods = append(mods, m)
		}
	}
	if len(mods) == 0 {
		return []string{"type", "--", key}
	}
	return []string{"key", "--", strings.Join(append(mods, key), "+")}
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}

func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
