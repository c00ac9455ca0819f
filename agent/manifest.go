package agent

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentrelay/core"
)

const metadataDelimiter = "---"

// Manifest pairs an agent descriptor with the free-form markdown body that
// follows the metadata block (typically the agent's instructions).
type Manifest struct {
	Descriptor core.AgentDescriptor
	Body       string
}

// metadata mirrors the manifest's YAML metadata block. Pointer fields
// distinguish "absent" from zero values so parsing can fall back to derived
// defaults. Unknown keys are tolerated and dropped.
type metadata struct {
	ID           string   `yaml:"id,omitempty"`
	Name         string   `yaml:"name,omitempty"`
	Description  string   `yaml:"description,omitempty"`
	Provider     string   `yaml:"provider,omitempty"`
	Discoverable *bool    `yaml:"discoverable,omitempty"`
	Tags         []string `yaml:"tags,omitempty"`
	Delegation   *struct {
		CanReceive  *bool `yaml:"canReceive,omitempty"`
		CanDelegate *bool `yaml:"canDelegate,omitempty"`
	} `yaml:"delegation,omitempty"`
	Priority *int `yaml:"priority,omitempty"`
}

// ParseManifest parses a manifest document. fallbackID seeds the descriptor
// id (and display name) when the metadata block omits them; it is typically
// derived from the manifest's file or directory name. Missing metadata falls
// back to defaults: discoverable true, canReceive true, canDelegate false,
// priority core.DefaultPriority. A document without a metadata block is valid
// and yields a descriptor built entirely from defaults.
func ParseManifest(raw []byte, fallbackID string) (Manifest, error) {
	var meta metadata
	body := string(raw)

	if block, rest, ok := splitMetadataBlock(body); ok {
		if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
			return Manifest{}, fmt.Errorf("parse manifest metadata: %w", err)
		}
		body = rest
	}

	d := core.AgentDescriptor{
		ID:           core.NormalizeAgentID(firstNonEmpty(meta.ID, fallbackID)),
		DisplayName:  firstNonEmpty(meta.Name, fallbackID),
		Description:  meta.Description,
		Provider:     meta.Provider,
		Discoverable: boolOr(meta.Discoverable, true),
		Tags:         normalizeTags(meta.Tags),
		Priority:     intOr(meta.Priority, core.DefaultPriority),
		Delegation: core.Delegation{
			CanReceive:  true,
			CanDelegate: false,
		},
	}
	if meta.Delegation != nil {
		d.Delegation.CanReceive = boolOr(meta.Delegation.CanReceive, true)
		d.Delegation.CanDelegate = boolOr(meta.Delegation.CanDelegate, false)
	}
	if d.ID == "" {
		return Manifest{}, fmt.Errorf("manifest has no usable agent id")
	}

	return Manifest{Descriptor: d, Body: strings.TrimLeft(body, "\n")}, nil
}

// Format renders the manifest back to markdown. The metadata block is emitted
// in a fixed key order so parse → Format round-trips are semantically
// identical (and byte-stable for normalized input).
func (m Manifest) Format() []byte {
	d := m.Descriptor
	var b strings.Builder
	b.WriteString(metadataDelimiter + "\n")
	fmt.Fprintf(&b, "id: %s\n", d.ID)
	fmt.Fprintf(&b, "name: %s\n", quoteIfNeeded(d.DisplayName))
	if d.Description != "" {
		fmt.Fprintf(&b, "description: %s\n", quoteIfNeeded(d.Description))
	}
	if d.Provider != "" {
		fmt.Fprintf(&b, "provider: %s\n", d.Provider)
	}
	fmt.Fprintf(&b, "discoverable: %t\n", d.Discoverable)
	if len(d.Tags) > 0 {
		fmt.Fprintf(&b, "tags: [%s]\n", strings.Join(d.Tags, ", "))
	}
	b.WriteString("delegation:\n")
	fmt.Fprintf(&b, "  canReceive: %t\n", d.Delegation.CanReceive)
	fmt.Fprintf(&b, "  canDelegate: %t\n", d.Delegation.CanDelegate)
	fmt.Fprintf(&b, "priority: %d\n", d.Priority)
	b.WriteString(metadataDelimiter + "\n")
	if m.Body != "" {
		b.WriteString("\n")
		b.WriteString(m.Body)
		if !strings.HasSuffix(m.Body, "\n") {
			b.WriteString("\n")
		}
	}
	return []byte(b.String())
}

// splitMetadataBlock extracts a leading delimited metadata block. The block
// opens with "---" on the first line and closes with "---" on its own line.
// Returns the block content, the remaining body, and whether a block was
// present.
func splitMetadataBlock(doc string) (block, rest string, ok bool) {
	if !strings.HasPrefix(doc, metadataDelimiter+"\n") {
		return "", doc, false
	}
	after := doc[len(metadataDelimiter)+1:]
	if idx := strings.Index(after, "\n"+metadataDelimiter+"\n"); idx >= 0 {
		return after[:idx], after[idx+len(metadataDelimiter)+2:], true
	}
	if strings.HasSuffix(after, "\n"+metadataDelimiter) {
		return strings.TrimSuffix(after, "\n"+metadataDelimiter), "", true
	}
	return "", doc, false
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, ":#{}[]&*!|>'\"%@`,") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
