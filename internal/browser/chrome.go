package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/salespulse/bridge/internal/devlog"
)

// Kind identifies the type of Chromium-based browser.
type Kind string

const (
	KindChrome   Kind = "chrome"
	KindBrave    Kind = "brave"
	KindEdge     Kind = "edge"
	KindChromium Kind = "chromium"
	KindCanary   Kind = "canary"
	KindCustom   Kind = "custom"
)

// Executable represents a found browser binary.
type Executable struct {
	Kind Kind
	Path string
}

// RunningChrome represents a Chrome instance the bridge launched.
type RunningChrome struct {
	PID         int
	Executable  *Executable
	UserDataDir string
	CDPPort     int
	StartedAt   time.Time
	cmd         *exec.Cmd
}

// FindExecutable finds a Chrome/Chromium browser on the system. A non-empty
// customPath wins and must exist.
func FindExecutable(customPath string) (*Executable, error) {
	if customPath != "" {
		if !fileExists(customPath) {
			return nil, fmt.Errorf("browser executable not found: %s", customPath)
		}
		return &Executable{Kind: KindCustom, Path: customPath}, nil
	}

	// Try to detect default browser first
	if exe := detectDefaultChromium(); exe != nil {
		return exe, nil
	}

	// Fall back to known paths
	switch runtime.GOOS {
	case "darwin":
		return findChromeMac(), nil
	case "linux":
		return findChromeLinux(), nil
	case "windows":
		return findChromeWindows(), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// IsReachable checks if Chrome CDP is responding.
func IsReachable(cdpURL string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	versionURL := strings.TrimSuffix(cdpURL, "/") + "/json/version"
	req, err := http.NewRequestWithContext(ctx, "GET", versionURL, nil)
	if err != nil {
		return false
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// WebSocketURL gets the CDP WebSocket URL from a running Chrome.
func WebSocketURL(cdpURL string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	versionURL := strings.TrimSuffix(cdpURL, "/") + "/json/version"
	req, err := http.NewRequestWithContext(ctx, "GET", versionURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return "", err
	}

	if version.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("no webSocketDebuggerUrl in response")
	}

	return version.WebSocketDebuggerURL, nil
}

// LaunchOptions configure a local Chrome launch.
type LaunchOptions struct {
	ExecutablePath string
	UserDataDir    string
	CDPPort        int
	Headless       bool
	NoSandbox      bool
	// StartURL is opened in the first tab; empty means about:blank.
	StartURL string
}

// Launch starts a Chrome instance with CDP enabled and waits for the
// debugging endpoint to come up.
func Launch(opts LaunchOptions) (*RunningChrome, error) {
	exe, err := FindExecutable(opts.ExecutablePath)
	if err != nil {
		return nil, err
	}
	if exe == nil {
		return nil, fmt.Errorf("no supported browser found (Chrome/Brave/Edge/Chromium)")
	}

	if err := os.MkdirAll(opts.UserDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create user data dir: %w", err)
	}

	args := buildChromeArgs(opts)

	cmd := exec.Command(exe.Path, args...)
	cmd.Env = append(os.Environ(), "HOME="+os.Getenv("HOME"))
	setChromeProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start Chrome: %w", err)
	}
	devlog.Printf("[Browser] launched %s (pid %d) on CDP port %d", exe.Kind, cmd.Process.Pid, opts.CDPPort)

	running := &RunningChrome{
		PID:         cmd.Process.Pid,
		Executable:  exe,
		UserDataDir: opts.UserDataDir,
		CDPPort:     opts.CDPPort,
		StartedAt:   time.Now(),
		cmd:         cmd,
	}

	// Wait for CDP to be ready
	cdpURL := fmt.Sprintf("http://127.0.0.1:%d", opts.CDPPort)
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if IsReachable(cdpURL, 500*time.Millisecond) {
			return running, nil
		}
		time.Sleep(200 * time.Millisecond)
	}

	// CDP didn't come up, kill the process
	killChromeProcessGroup(cmd, true)
	return nil, fmt.Errorf("Chrome CDP did not start on port %d within 15s", opts.CDPPort)
}

// CDPURL returns the HTTP debugging endpoint of the launched instance.
func (r *RunningChrome) CDPURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", r.CDPPort)
}

// Stop stops a running Chrome instance, gracefully first.
func (r *RunningChrome) Stop(timeout time.Duration) error {
	if r.cmd == nil || r.cmd.Process == nil {
		return nil
	}

	killChromeProcessGroup(r.cmd, false)

	done := make(chan error, 1)
	go func() {
		done <- r.cmd.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		killChromeProcessGroup(r.cmd, true)
		return nil
	}
}

func buildChromeArgs(opts LaunchOptions) []string {
	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", opts.CDPPort),
		fmt.Sprintf("--user-data-dir=%s", opts.UserDataDir),
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-sync",
		"--disable-background-networking",
		"--disable-component-update",
		"--disable-features=Translate,MediaRouter",
		"--disable-session-crashed-bubble",
		"--hide-crash-restore-bubble",
		"--password-store=basic",
	}

	if opts.Headless {
		args = append(args, "--headless=new", "--disable-gpu")
	}

	if opts.NoSandbox {
		args = append(args, "--no-sandbox", "--disable-setuid-sandbox")
	}

	if runtime.GOOS == "linux" {
		args = append(args, "--disable-dev-shm-usage")
	}

	startURL := opts.StartURL
	if startURL == "" {
		startURL = "about:blank"
	}
	args = append(args, startURL)

	return args
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// macOS Chrome detection
func findChromeMac() *Executable {
	candidates := []struct {
		kind Kind
		path string
	}{
		{KindChrome, "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"},
		{KindChrome, filepath.Join(os.Getenv("HOME"), "Applications/Google Chrome.app/Contents/MacOS/Google Chrome")},
		{KindBrave, "/Applications/Brave Browser.app/Contents/MacOS/Brave Browser"},
		{KindBrave, filepath.Join(os.Getenv("HOME"), "Applications/Brave Browser.app/Contents/MacOS/Brave Browser")},
		{KindEdge, "/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge"},
		{KindEdge, filepath.Join(os.Getenv("HOME"), "Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge")},
		{KindChromium, "/Applications/Chromium.app/Contents/MacOS/Chromium"},
		{KindCanary, "/Applications/Google Chrome Canary.app/Contents/MacOS/Google Chrome Canary"},
	}

	for _, c := range candidates {
		if fileExists(c.path) {
			return &Executable{Kind: c.kind, Path: c.path}
		}
	}
	return nil
}

// Linux Chrome detection
func findChromeLinux() *Executable {
	candidates := []struct {
		kind Kind
		path string
	}{
		{KindChrome, "/usr/bin/google-chrome"},
		{KindChrome, "/usr/bin/google-chrome-stable"},
		{KindChrome, "/usr/bin/chrome"},
		{KindBrave, "/usr/bin/brave-browser"},
		{KindBrave, "/usr/bin/brave-browser-stable"},
		{KindBrave, "/snap/bin/brave"},
		{KindEdge, "/usr/bin/microsoft-edge"},
		{KindEdge, "/usr/bin/microsoft-edge-stable"},
		{KindChromium, "/usr/bin/chromium"},
		{KindChromium, "/usr/bin/chromium-browser"},
		{KindChromium, "/snap/bin/chromium"},
	}

	for _, c := range candidates {
		if fileExists(c.path) {
			return &Executable{Kind: c.kind, Path: c.path}
		}
	}
	return nil
}

// Windows Chrome detection
func findChromeWindows() *Executable {
	localAppData := os.Getenv("LOCALAPPDATA")
	programFiles := os.Getenv("ProgramFiles")
	if programFiles == "" {
		programFiles = "C:\\Program Files"
	}
	programFilesX86 := os.Getenv("ProgramFiles(x86)")
	if programFilesX86 == "" {
		programFilesX86 = "C:\\Program Files (x86)"
	}

	type candidate struct {
		kind Kind
		path string
	}
	var candidates []candidate

	if localAppData != "" {
		candidates = append(candidates,
			candidate{KindChrome, filepath.Join(localAppData, "Google", "Chrome", "Application", "chrome.exe")},
			candidate{KindBrave, filepath.Join(localAppData, "BraveSoftware", "Brave-Browser", "Application", "brave.exe")},
			candidate{KindEdge, filepath.Join(localAppData, "Microsoft", "Edge", "Application", "msedge.exe")},
			candidate{KindCanary, filepath.Join(localAppData, "Google", "Chrome SxS", "Application", "chrome.exe")},
		)
	}

	candidates = append(candidates,
		candidate{KindChrome, filepath.Join(programFiles, "Google", "Chrome", "Application", "chrome.exe")},
		candidate{KindChrome, filepath.Join(programFilesX86, "Google", "Chrome", "Application", "chrome.exe")},
		candidate{KindBrave, filepath.Join(programFiles, "BraveSoftware", "Brave-Browser", "Application", "brave.exe")},
		candidate{KindEdge, filepath.Join(programFiles, "Microsoft", "Edge", "Application", "msedge.exe")},
	)

	for _, c := range candidates {
		if fileExists(c.path) {
			return &Executable{Kind: c.kind, Path: c.path}
		}
	}
	return nil
}

// detectDefaultChromium tries to detect the system's default Chromium browser.
func detectDefaultChromium() *Executable {
	switch runtime.GOOS {
	case "darwin":
		return detectDefaultChromiumMac()
	case "linux":
		return detectDefaultChromiumLinux()
	case "windows":
		return detectDefaultChromiumWindows()
	default:
		return nil
	}
}

func detectDefaultChromiumMac() *Executable {
	// Use osascript to get default browser bundle path
	cmd := exec.Command("osascript", "-e", `
		use framework "AppKit"
		set ws to current application's NSWorkspace's sharedWorkspace()
		set defaultBrowser to ws's URLForApplicationToOpenURL:(current application's NSURL's URLWithString:"https://")
		if defaultBrowser is missing value then return ""
		set bundlePath to defaultBrowser's |path|() as text
		return bundlePath
	`)
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	bundlePath := strings.TrimSpace(string(out))
	if bundlePath == "" {
		return nil
	}

	chromiumBundles := map[string]Kind{
		"Google Chrome.app":        KindChrome,
		"Google Chrome Canary.app": KindCanary,
		"Brave Browser.app":        KindBrave,
		"Microsoft Edge.app":       KindEdge,
		"Chromium.app":             KindChromium,
		"Arc.app":                  KindChromium,
		"Vivaldi.app":              KindChromium,
		"Opera.app":                KindChromium,
	}

	for name, kind := range chromiumBundles {
		if strings.Contains(bundlePath, name) {
			exeName := strings.TrimSuffix(name, ".app")
			exePath := filepath.Join(bundlePath, "Contents", "MacOS", exeName)
			if fileExists(exePath) {
				return &Executable{Kind: kind, Path: exePath}
			}
		}
	}

	return nil
}

func detectDefaultChromiumLinux() *Executable {
	cmd := exec.Command("xdg-settings", "get", "default-web-browser")
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	desktopID := strings.TrimSpace(string(out))
	if desktopID == "" {
		return nil
	}

	chromiumDesktops := map[string]Kind{
		"google-chrome.desktop":        KindChrome,
		"google-chrome-stable.desktop": KindChrome,
		"brave-browser.desktop":        KindBrave,
		"microsoft-edge.desktop":       KindEdge,
		"chromium.desktop":             KindChromium,
		"chromium-browser.desktop":     KindChromium,
	}

	kind, ok := chromiumDesktops[desktopID]
	if !ok {
		return nil
	}

	// findChromeLinux locates the actual binary
	exe := findChromeLinux()
	if exe != nil {
		exe.Kind = kind
	}
	return exe
}

func detectDefaultChromiumWindows() *Executable {
	cmd := exec.Command("reg", "query",
		"HKCU\\Software\\Microsoft\\Windows\\Shell\\Associations\\UrlAssociations\\http\\UserChoice",
		"/v", "ProgId")
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	output := string(out)
	if strings.Contains(output, "ChromeHTML") {
		return findChromeWindows()
	}
	if strings.Contains(output, "BraveHTML") {
		exe := findChromeWindows()
		if exe != nil && exe.Kind == KindBrave {
			return exe
		}
	}
	if strings.Contains(output, "MSEdgeHTM") {
		exe := findChromeWindows()
		if exe != nil && exe.Kind == KindEdge {
			return exe
		}
	}

	return nil
}
