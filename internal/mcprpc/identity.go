package mcprpc

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fleetd/internal/coordinator"
)

// identityPath maps the read_identity enum to an on-disk path relative
// to the persist root, mirroring howell_bridge.py's identity/memory
// hierarchy: SOUL/CONTEXT/PROJECTS/QUESTIONS at the root, RECENT/PINNED/
// SUMMARY under memory/.
func identityPath(persistRoot, key string) (string, bool) {
	switch key {
	case "soul":
		return filepath.Join(persistRoot, "SOUL.md"), true
	case "context":
		return filepath.Join(persistRoot, "CONTEXT.md"), true
	case "projects":
		return filepath.Join(persistRoot, "PROJECTS.md"), true
	case "questions":
		return filepath.Join(persistRoot, "QUESTIONS.md"), true
	case "memory":
		return filepath.Join(persistRoot, "memory", "RECENT.md"), true
	case "pinned":
		return filepath.Join(persistRoot, "memory", "PINNED.md"), true
	case "summary":
		return filepath.Join(persistRoot, "memory", "SUMMARY.md"), true
	default:
		return "", false
	}
}

func readIdentityFile(c *coordinator.Coordinator, key string) (string, error) {
	path, ok := identityPath(c.Config.PersistRoot, key)
	if !ok {
		return "", fmt.Errorf("unknown identity file: %s", key)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "[not found]", nil
	}
	return string(data), nil
}

func appendPinnedMemory(c *coordinator.Coordinator, title, text, reason string) error {
	path, _ := identityPath(c.Config.PersistRoot, "pinned")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	entry := fmt.Sprintf("\n## %s\n\n%s\n\n_Pinned: %s_\n", title, text, reason)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(entry)
	return err
}

func appendRecentMemory(c *coordinator.Coordinator, summary, whatLearned string) error {
	path, _ := identityPath(c.Config.PersistRoot, "memory")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	entry := fmt.Sprintf("\n## Session ending %s\n\n%s\n", time.Now().UTC().Format(time.RFC3339), summary)
	if whatLearned != "" {
		entry += fmt.Sprintf("\n**Learned:** %s\n", whatLearned)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(entry)
	return err
}

func listProcedures(persistRoot string) []string {
	dir := filepath.Join(persistRoot, "procedures")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []string{}
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") || e.Name() == "README.md" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".md"))
	}
	sort.Strings(names)
	return names
}

func readProcedure(persistRoot, topic string) (name, content string, found bool) {
	dir := filepath.Join(persistRoot, "procedures")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", "", false
	}
	lowerTopic := strings.ToLower(topic)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), ".md")
		if strings.Contains(strings.ToLower(stem), lowerTopic) {
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				continue
			}
			return stem, string(data), true
		}
	}
	return "", "", false
}
