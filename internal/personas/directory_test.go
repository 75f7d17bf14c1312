package personas

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDirectoryWrapped(t *testing.T) {
	path := writeFile(t, "personas.yaml", `
personas:
  - name: JohnPM
    display_name: John (PM)
    role: product manager
    system_prompt: You are a PM.
    knowledge_base_path: kb/roadmap.md
  - name: SreBot
    role: site reliability
`)

	dir, err := LoadDirectory(path)
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	if dir.Len() != 2 {
		t.Fatalf("Len = %d, want 2", dir.Len())
	}

	john, ok := dir.ByName("JohnPM")
	if !ok {
		t.Fatal("JohnPM not found")
	}
	if john.DisplayName != "John (PM)" || john.Role != "product manager" {
		t.Errorf("persona = %+v", john)
	}
	if john.KnowledgeBasePath != "kb/roadmap.md" {
		t.Errorf("KnowledgeBasePath = %q", john.KnowledgeBasePath)
	}

	// DisplayName defaults to Name when omitted.
	sre, _ := dir.ByName("SreBot")
	if sre.DisplayName != "SreBot" {
		t.Errorf("DisplayName = %q, want SreBot", sre.DisplayName)
	}
}

func TestLoadDirectoryBareList(t *testing.T) {
	path := writeFile(t, "personas.yaml", `
- name: Solo
  role: generalist
`)
	dir, err := LoadDirectory(path)
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	if dir.Len() != 1 {
		t.Errorf("Len = %d, want 1", dir.Len())
	}
}

func TestLoadDirectoryRejectsDuplicates(t *testing.T) {
	path := writeFile(t, "personas.yaml", `
personas:
  - name: JohnPM
  - name: johnpm
`)
	if _, err := LoadDirectory(path); err == nil {
		t.Error("case-insensitive duplicate accepted")
	}
}

func TestLoadDirectoryRejectsMissingName(t *testing.T) {
	path := writeFile(t, "personas.yaml", `
personas:
  - role: anonymous
`)
	if _, err := LoadDirectory(path); err == nil {
		t.Error("entry without name accepted")
	}
}

func TestLoadDirectoryMissingFile(t *testing.T) {
	if _, err := LoadDirectory("/nonexistent/personas.yaml"); err == nil {
		t.Error("missing file accepted")
	}
}

func TestByNameCaseInsensitive(t *testing.T) {
	dir := NewDirectory([]Persona{{Name: "JohnPM"}})

	for _, name := range []string{"JohnPM", "johnpm", "JOHNPM"} {
		if _, ok := dir.ByName(name); !ok {
			t.Errorf("ByName(%q) not found", name)
		}
	}
	if _, ok := dir.ByName("Other"); ok {
		t.Error("ByName matched unknown persona")
	}
}

func TestInfos(t *testing.T) {
	dir := NewDirectory([]Persona{
		{Name: "A", Role: "first"},
		{Name: "B", Role: "second"},
	})
	infos := dir.Infos()
	if len(infos) != 2 || infos[0].Name != "A" || infos[1].Role != "second" {
		t.Errorf("Infos = %v", infos)
	}
}
