package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrNoProfile = errors.New("no config profile selected")

func ConfigRoot() string {
	// Windows
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, "stripd")
	}

	// Linux/macOS XDG
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "stripd")
	}

	// Linux/macOS default
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "stripd")
}

func ProfilesDir() string {
	return filepath.Join(ConfigRoot(), "profiles")
}

func activeLabelFile() string {
	return filepath.Join(ConfigRoot(), "active_profile")
}

func ensureDirs() error {
	if err := os.MkdirAll(ConfigRoot(), 0755); err != nil {
		return err
	}
	return os.MkdirAll(ProfilesDir(), 0755)
}

func ActiveLabel() (string, error) {
	if err := ensureDirs(); err != nil {
		return "", err
	}

	b, err := os.ReadFile(activeLabelFile())
	if os.IsNotExist(err) {
		return "", ErrNoProfile
	}
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(b)), nil
}

func ActiveProfilePath() (string, error) {
	if err := ensureDirs(); err != nil {
		return "", err
	}

	label, err := ActiveLabel()
	if err != nil || label == "" {
		return "", ErrNoProfile
	}

	return filepath.Join(ProfilesDir(), label+".yaml"), nil
}

type ProfileInfo struct {
	Label  string
	Path   string
	Active bool
}

func ListProfiles() ([]ProfileInfo, error) {
	if err := ensureDirs(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(ProfilesDir())
	if err != nil {
		return nil, err
	}

	activeLabel, _ := ActiveLabel()
	var out []ProfileInfo

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}

		label := strings.TrimSuffix(e.Name(), ".yaml")
		out = append(out, ProfileInfo{
			Label:  label,
			Path:   filepath.Join(ProfilesDir(), e.Name()),
			Active: label == activeLabel,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func SwitchProfile(label string) error {
	if strings.TrimSpace(label) == "" {
		return errors.New("label cannot be empty")
	}
	if err := ensureDirs(); err != nil {
		return err
	}

	path := filepath.Join(ProfilesDir(), label+".yaml")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("profile %q does not exist", label)
	}

	return os.WriteFile(activeLabelFile(), []byte(label), 0644)
}

func RemoveProfile(label string) error {
	if strings.TrimSpace(label) == "" {
		return errors.New("label cannot be empty")
	}
	if label == "Default" {
		return errors.New("cannot remove the Default profile")
	}
	if err := ensureDirs(); err != nil {
		return err
	}

	path := filepath.Join(ProfilesDir(), label+".yaml")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("profile %q does not exist", label)
	}

	active, _ := ActiveLabel()
	if active == label {
		if err := SwitchProfile("Default"); err != nil {
			return fmt.Errorf("failed switching to Default: %w", err)
		}
		fmt.Println("Fallback switched to: Default")
	}

	return os.Remove(path)
}

func InitDefaultProfile() (string, error) {
	if err := ensureDirs(); err != nil {
		return "", err
	}

	defPath := filepath.Join(ProfilesDir(), "Default.yaml")

	if _, err := os.Stat(defPath); err == nil {
		_ = os.WriteFile(activeLabelFile(), []byte("Default"), 0644)
		return defPath, os.ErrExist
	}

	if err := SaveYAML(DefaultConfig(), defPath); err != nil {
		return "", err
	}

	_ = os.WriteFile(activeLabelFile(), []byte("Default"), 0644)
	return defPath, nil
}
