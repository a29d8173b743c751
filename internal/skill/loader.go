// Package skill 加载 .agents/skills/<name>/SKILL.md 形式的技能说明文档。
package skill

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"music-copilot-go/pkg/log"
)

const fileName = "SKILL.md"

// Skill 是一份技能文档：YAML 头部加正文指令。
type Skill struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	TriggerKeywords []string `json:"trigger_keywords"`
	Instructions    string   `json:"-"`
	Dir             string   `json:"-"`
}

type frontmatter struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	TriggerKeywords []string `yaml:"trigger_keywords"`
}

var errNoFrontmatter = errors.New("missing frontmatter")

// LoadDir 读取 dir 下每个子目录中的 SKILL.md，按目录名排序。
// 目录不存在时返回空列表；单个文件解析失败只记录日志并跳过。
func LoadDir(dir string) ([]Skill, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取技能目录失败: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var skills []Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name(), fileName)
		content, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				log.Warnf("[Skill] 读取 %s 失败: %v", path, err)
			}
			continue
		}
		s, err := Parse(content)
		if err != nil {
			log.Warnf("[Skill] 解析 %s 失败: %v", path, err)
			continue
		}
		s.Dir = filepath.Dir(path)
		skills = append(skills, s)
	}
	return skills, nil
}

// Parse 解析一份 SKILL.md。name 与 description 必填，trigger_keywords 缺省为 [name]。
func Parse(content []byte) (Skill, error) {
	text := bytes.TrimPrefix(content, []byte("\ufeff"))
	if !bytes.HasPrefix(text, []byte("---")) {
		return Skill{}, errNoFrontmatter
	}
	parts := strings.SplitN(string(text), "---", 3)
	if len(parts) < 3 {
		return Skill{}, errNoFrontmatter
	}

	var meta frontmatter
	if err := yaml.Unmarshal([]byte(parts[1]), &meta); err != nil {
		return Skill{}, fmt.Errorf("frontmatter: %w", err)
	}
	if meta.Name == "" || meta.Description == "" {
		return Skill{}, errors.New("name and description are required")
	}
	if len(meta.TriggerKeywords) == 0 {
		meta.TriggerKeywords = []string{meta.Name}
	}
	return Skill{
		Name:            meta.Name,
		Description:     meta.Description,
		TriggerKeywords: meta.TriggerKeywords,
		Instructions:    strings.TrimSpace(parts[2]),
	}, nil
}
