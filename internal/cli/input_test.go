package cli

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/bastiangx/massfind/pkg/catalog"
	"github.com/bastiangx/massfind/pkg/corpus"
	"github.com/bastiangx/massfind/pkg/index"
	"github.com/bastiangx/massfind/pkg/residue"
	"github.com/bastiangx/massfind/pkg/search"
	"github.com/charmbracelet/log"
)

func testHandler(t *testing.T) *InputHandler {
	t.Helper()
	c, err := corpus.New([]byte("$ABK$CDKP$"), '$')
	if err != nil {
		t.Fatal(err)
	}
	ix, err := index.Build(c, corpus.Trypsin())
	if err != nil {
		t.Fatal(err)
	}
	tbl := &residue.Table{}
	for b, m := range map[byte]float64{'A': 1, 'B': 2, 'C': 3, 'D': 4, 'K': 5, 'P': 6} {
		tbl.Set(b, m)
	}
	s := search.NewSearcher(search.New(search.Options{Residues: tbl}), ix)
	return NewInputHandler(s, catalog.Anonymous(c), 0.01, 0, 10)
}

func TestHandleInput(t *testing.T) {
	h := testHandler(t)

	n, err := h.handleInput("18, 8")
	if err != nil {
		t.Fatalf("handleInput: %v", err)
	}
	if n != 2 {
		t.Errorf("printed %d hits, want 2", n)
	}

	if _, err := h.handleInput("8 abc"); err == nil {
		t.Error("expected a parse error")
	}
}

func TestCommands(t *testing.T) {
	h := testHandler(t)

	if _, err := h.handleInput(":tags dkp"); err != nil {
		t.Fatalf("tags: %v", err)
	}
	if n, _ := h.handleInput("8 18"); n != 1 {
		t.Errorf("with tag DKP printed %d hits, want 1", n)
	}
	if _, err := h.handleInput(":tags"); err != nil || len(h.tags) != 0 {
		t.Errorf("tags not cleared: %v %v", h.tags, err)
	}
	if _, err := h.handleInput(":tol 2.5"); err != nil || h.tolerance != 2.5 {
		t.Errorf("tol = %v, %v", h.tolerance, err)
	}
	if _, err := h.handleInput(":mods -1"); err == nil {
		t.Error("negative mods accepted")
	}
	if _, err := h.handleInput(":what"); err == nil {
		t.Error("unknown command accepted")
	}
	if _, err := h.handleInput(":tags AB"); err != nil {
		t.Fatalf("tags: %v", err)
	}
	if _, err := h.handleInput("8"); err == nil {
		t.Error("short tag should fail the search")
	}
}

func TestRunPrintsHits(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	h := testHandler(t)
	if err := h.Run(strings.NewReader("8\n\n18")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "ABK") || !strings.Contains(out, "record_2:1") {
		t.Errorf("output missing hits:\n%s", out)
	}
}

func TestListRecords(t *testing.T) {
	h := testHandler(t)

	if n, err := h.listRecords("record_"); err != nil || n != 2 {
		t.Errorf("listRecords(record_) = %d, %v", n, err)
	}
	if n, _ := h.listRecords("record_2"); n != 1 {
		t.Errorf("listRecords(record_2) = %d, want 1", n)
	}
	if n, _ := h.listRecords("sp|"); n != 0 {
		t.Errorf("listRecords(sp|) = %d, want 0", n)
	}
	if _, err := h.handleInput(":rec"); err == nil {
		t.Error(":rec without a prefix accepted")
	}
	if _, err := h.handleInput(":rec record_1"); err != nil {
		t.Errorf(":rec record_1: %v", err)
	}

	h.hitLimit = 1
	if n, _ := h.listRecords("record_"); n != 1 {
		t.Errorf("limited listRecords = %d, want 1", n)
	}
}
