package i18n

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// rawFile 词库文件的磁盘格式
type rawFile struct {
	Conf    rawConf                            `yaml:"conf" toml:"conf" json:"conf"`
	Locales map[string]map[string]rawPageRules `yaml:"locales" toml:"locales" json:"locales"`
}

type rawConf struct {
	IgnoreMutationSelectorPage map[string][]string `yaml:"ignoreMutationSelectorPage" toml:"ignoreMutationSelectorPage" json:"ignoreMutationSelectorPage"`
	IgnoreSelectorPage         map[string][]string `yaml:"ignoreSelectorPage" toml:"ignoreSelectorPage" json:"ignoreSelectorPage"`
	CharacterDataPage          []string            `yaml:"characterDataPage" toml:"characterDataPage" json:"characterDataPage"`
	RePagePathRepo             string              `yaml:"rePagePathRepo" toml:"rePagePathRepo" json:"rePagePathRepo"`
	RePagePathOrg              string              `yaml:"rePagePathOrg" toml:"rePagePathOrg" json:"rePagePathOrg"`
	RePagePath                 string              `yaml:"rePagePath" toml:"rePagePath" json:"rePagePath"`
}

type rawPageRules struct {
	Static   map[string]string `yaml:"static" toml:"static" json:"static"`
	Regexp   [][]string        `yaml:"regexp" toml:"regexp" json:"regexp"`
	Selector [][]string        `yaml:"selector" toml:"selector" json:"selector"`
}

// Format 词库文件格式
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatFromPath 根据扩展名推断格式
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".toml":
		return FormatTOML, true
	case ".json":
		return FormatJSON, true
	}
	return "", false
}

// Load 加载词库文件或目录。目录中的文件按文件名顺序合并。
func Load(path string) (*Repository, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat rules path: %w", err)
	}

	repo := NewRepository()
	if !info.IsDir() {
		part, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		repo.Merge(part)
		return repo, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := FormatFromPath(p); ok && !strings.HasPrefix(d.Name(), ".") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan rules directory: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		part, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		repo.Merge(part)
	}
	return repo, nil
}

// LoadFile 加载单个词库文件
func LoadFile(path string) (*Repository, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return nil, fmt.Errorf("unsupported rules file: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	repo, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return repo, nil
}

// Decode 解码词库数据
func Decode(data []byte, format Format) (*Repository, error) {
	var raw rawFile
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode yaml: %w", err)
		}
	case FormatTOML:
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode toml: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	return raw.compile()
}

func (raw rawFile) compile() (*Repository, error) {
	repo := &Repository{
		Conf: Conf{
			IgnoreMutationSelectorPage: raw.Conf.IgnoreMutationSelectorPage,
			IgnoreSelectorPage:         raw.Conf.IgnoreSelectorPage,
			CharacterDataPage:          raw.Conf.CharacterDataPage,
		},
		Locales: make(map[string]Locale, len(raw.Locales)),
	}

	var err error
	if repo.Conf.RePagePathRepo, err = CompilePattern(raw.Conf.RePagePathRepo); err != nil {
		return nil, fmt.Errorf("rePagePathRepo: %w", err)
	}
	if repo.Conf.RePagePathOrg, err = CompilePattern(raw.Conf.RePagePathOrg); err != nil {
		return nil, fmt.Errorf("rePagePathOrg: %w", err)
	}
	if repo.Conf.RePagePath, err = CompilePattern(raw.Conf.RePagePath); err != nil {
		return nil, fmt.Errorf("rePagePath: %w", err)
	}

	for lang, pages := range raw.Locales {
		loc := make(Locale, len(pages))
		for pageType, rp := range pages {
			rules, err := rp.compile()
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", lang, pageType, err)
			}
			loc[pageType] = rules
		}
		repo.Locales[lang] = loc
	}
	return repo, nil
}

func (rp rawPageRules) compile() (*PageRules, error) {
	rules := &PageRules{
		Static:   rp.Static,
		Regexp:   make([]Rule, 0, len(rp.Regexp)),
		Selector: make([]SelectorRule, 0, len(rp.Selector)),
	}
	if rules.Static == nil {
		rules.Static = map[string]string{}
	}

	for i, pair := range rp.Regexp {
		if len(pair) != 2 {
			return nil, fmt.Errorf("regexp[%d]: want [pattern, replacement], got %d items", i, len(pair))
		}
		r, err := CompileRule(pair[0], pair[1])
		if err != nil {
			return nil, fmt.Errorf("regexp[%d]: %w", i, err)
		}
		rules.Regexp = append(rules.Regexp, r)
	}

	for i, pair := range rp.Selector {
		if len(pair) != 2 {
			return nil, fmt.Errorf("selector[%d]: want [selector, text], got %d items", i, len(pair))
		}
		rules.Selector = append(rules.Selector, SelectorRule{Selector: pair[0], Text: pair[1]})
	}
	return rules, nil
}
