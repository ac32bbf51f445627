package script

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// templateFile is the on-disk schema for user template overlays. A file
// may define extra preambles, override a built-in template body, or add
// a template for a tool registered by the embedding application.
type templateFile struct {
	Tool      string            `yaml:"tool"`
	Requires  []string          `yaml:"requires"`
	Body      string            `yaml:"body"`
	Preambles map[string]string `yaml:"preambles"`
}

// LoadFromDirectory installs template overlays from YAML files in a
// directory. Files must have a .yaml or .yml extension. Unreadable or
// invalid files are skipped with a warning so one bad overlay does not
// take down the library.
func (l *Library) LoadFromDirectory(dir string, logger *slog.Logger) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug("template directory does not exist, skipping", "dir", dir)
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read template dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("cannot read template file", "path", path, "err", err)
			continue
		}

		var tf templateFile
		if err := yaml.Unmarshal(data, &tf); err != nil {
			logger.Warn("cannot parse template file", "path", path, "err", err)
			continue
		}

		for id, code := range tf.Preambles {
			l.DefinePreamble(id, code)
			logger.Info("loaded user preamble", "id", id, "path", path)
		}

		if tf.Tool == "" {
			continue
		}
		if err := l.Install(Template{Tool: tf.Tool, Requires: tf.Requires, Body: tf.Body}); err != nil {
			logger.Warn("cannot install template", "path", path, "err", err)
			continue
		}
		logger.Info("loaded user template", "tool", tf.Tool, "path", path)
	}
	return nil
}
