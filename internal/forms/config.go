package forms

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"
)

// Config describes how one public form is handled: where submissions land
// and which emails go out.
type Config struct {
	// Table receives the submissions. For most forms this is a generic
	// submissions table; community fit uploads write structured rows instead.
	Table string `json:"table"`

	SendNotificationEmail bool `json:"sendNotificationEmail"`
	SendReplyEmail        bool `json:"sendReplyEmail"`

	// ReplySubject and ReplyTemplate drive the submitter-facing email.
	// The template supports {{field}}, {{timestamp}}, {{date}}, {{time}}.
	ReplySubject  string `json:"replySubject,omitempty"`
	ReplyTemplate string `json:"replyTemplate,omitempty"`
	ReplyTo       string `json:"replyTo,omitempty"`
}

//go:embed configs/*.json
var configFS embed.FS

var (
	configOnce sync.Once
	configs    map[string]Config
	configErr  error
)

// loadConfigs reads every embedded config document once. Each file holds a
// map of form id to Config so related forms can share a file.
func loadConfigs() (map[string]Config, error) {
	configOnce.Do(func() {
		configs = make(map[string]Config)
		entries, err := fs.ReadDir(configFS, "configs")
		if err != nil {
			configErr = fmt.Errorf("read form configs: %w", err)
			return
		}
		for _, entry := range entries {
			if !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			data, err := configFS.ReadFile("configs/" + entry.Name())
			if err != nil {
				configErr = fmt.Errorf("read form config %s: %w", entry.Name(), err)
				return
			}
			var batch map[string]Config
			if err := json.Unmarshal(data, &batch); err != nil {
				configErr = fmt.Errorf("parse form config %s: %w", entry.Name(), err)
				return
			}
			for id, cfg := range batch {
				if _, dup := configs[id]; dup {
					configErr = fmt.Errorf("form config %q defined twice", id)
					return
				}
				configs[id] = cfg
			}
		}
	})
	return configs, configErr
}

// ConfigFor looks up the handling config for a form id.
func ConfigFor(formID string) (Config, bool, error) {
	all, err := loadConfigs()
	if err != nil {
		return Config{}, false, err
	}
	cfg, ok := all[formID]
	return cfg, ok, nil
}
