package brd

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

const pinheadBoard = `<?xml version="1.0" encoding="utf-8"?>
<eagle version="9.6.2">
<drawing>
<board>
<libraries>
<library name="pinhead-2">
<packages>
<package name="1X02"><description>two pins</description></package>
</packages>
</library>
<library name="pinhead-2" urn="urn:adsk.eagle:library:X">
<packages>
<package name="1X05"><description>five pins</description></package>
</packages>
</library>
</libraries>
<elements>
<element name="JP1" library="pinhead-2" library_urn="urn:adsk.eagle:library:X" package="1X05"/>
</elements>
</board>
</drawing>
</eagle>
`

func TestRepair(t *testing.T) {
	log := zaptest.NewLogger(t)

	res, err := Repair(pinheadBoard, log)
	if err != nil {
		t.Fatalf("Repair() error = %v", err)
	}

	if res.LibrariesBefore != 2 || res.LibrariesAfter != 1 {
		t.Errorf("library counters = %d -> %d, want 2 -> 1", res.LibrariesBefore, res.LibrariesAfter)
	}
	if res.GroupsMerged != 1 {
		t.Errorf("GroupsMerged = %d, want 1", res.GroupsMerged)
	}
	if res.ReferencesUpdated != 1 {
		t.Errorf("ReferencesUpdated = %d, want 1", res.ReferencesUpdated)
	}
	if res.PackagesRetained != 2 {
		t.Errorf("PackagesRetained = %d, want 2", res.PackagesRetained)
	}
	if !res.Changed() {
		t.Error("Changed() = false after a merge")
	}
	if len(res.Trace) == 0 {
		t.Error("Trace is empty after a merge")
	}
	if !strings.HasPrefix(res.Output, Declaration) {
		t.Error("Output does not start with XML declaration")
	}

	out := mustParse(t, res.Output)
	libs := out.FindElements("//library")
	if len(libs) != 1 {
		t.Fatalf("expected 1 library in output, got %d", len(libs))
	}
	if libs[0].SelectAttrValue("name", "") != "pinhead-2" {
		t.Errorf("wrong library kept: %q", libs[0].SelectAttrValue("name", ""))
	}
	if libs[0].SelectAttr("urn") != nil {
		t.Error("merged library still carries urn")
	}
	names := packageNames(t, libs[0])
	if len(names) != 2 || names[0] != "1X02" || names[1] != "1X05" {
		t.Errorf("merged packages = %v, want [1X02 1X05]", names)
	}

	ref := out.FindElement("//element[@name='JP1']")
	if ref == nil {
		t.Fatal("part reference disappeared")
	}
	if ref.SelectAttr("library_urn") != nil {
		t.Error("part reference still carries library_urn")
	}
	if ref.SelectAttrValue("library", "") != "pinhead-2" || ref.SelectAttrValue("package", "") != "1X05" {
		t.Error("part reference library/package attributes were modified")
	}
}

func TestRepair_Idempotent(t *testing.T) {
	log := zaptest.NewLogger(t)

	first, err := Repair(pinheadBoard, log)
	if err != nil {
		t.Fatalf("first Repair() error = %v", err)
	}
	second, err := Repair(first.Output, log)
	if err != nil {
		t.Fatalf("second Repair() error = %v", err)
	}

	if second.Changed() {
		t.Error("second pass still reports changes")
	}
	if second.GroupsMerged != 0 || second.ReferencesUpdated != 0 {
		t.Errorf("second pass counters not zero: %+v", second)
	}
	if second.Output != first.Output {
		t.Error("second pass output differs from first pass output")
	}
}

func TestRepair_NoopPassthrough(t *testing.T) {
	log := zaptest.NewLogger(t)

	t.Run("with_declaration", func(t *testing.T) {
		input := `<?xml version="1.0" encoding="utf-8"?>
<eagle><drawing><board><libraries>
<library name="solo" urn="urn:adsk.eagle:library:1"><packages><package name="S"/></packages></library>
</libraries>
<elements><element name="U1" library="solo" library_urn="urn:adsk.eagle:library:1" package="S"/></elements>
</board></drawing></eagle>
`
		res, err := Repair(input, log)
		if err != nil {
			t.Fatalf("Repair() error = %v", err)
		}
		if res.Changed() {
			t.Error("Changed() = true on a document without duplicates")
		}
		if res.Output != input {
			t.Error("no-op pass did not return input byte-identical")
		}
		if res.LibrariesBefore != 1 || res.LibrariesAfter != 1 {
			t.Errorf("library counters = %d -> %d, want 1 -> 1", res.LibrariesBefore, res.LibrariesAfter)
		}
	})

	t.Run("declaration_added_when_missing", func(t *testing.T) {
		input := "<eagle><drawing><board><libraries/></board></drawing></eagle>"
		res, err := Repair(input, log)
		if err != nil {
			t.Fatalf("Repair() error = %v", err)
		}
		want := Declaration + "\n" + input
		if res.Output != want {
			t.Errorf("Output = %q, want declaration prepended to unchanged input", res.Output)
		}
	})
}

func TestRepair_Malformed(t *testing.T) {
	log := zaptest.NewLogger(t)

	t.Run("not_xml", func(t *testing.T) {
		if _, err := Repair("this is not a board file", log); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed, got %v", err)
		}
	})

	t.Run("library_without_name", func(t *testing.T) {
		input := `<eagle><drawing><board><libraries><library><packages/></library></libraries></board></drawing></eagle>`
		if _, err := Repair(input, log); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed, got %v", err)
		}
	})

	t.Run("empty_input", func(t *testing.T) {
		if _, err := Repair("", log); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed, got %v", err)
		}
	})
}

func TestEnsureDeclaration(t *testing.T) {
	if got := EnsureDeclaration("<eagle/>"); got != Declaration+"\n<eagle/>" {
		t.Errorf("EnsureDeclaration() = %q", got)
	}
	in := Declaration + "\n<eagle/>"
	if got := EnsureDeclaration(in); got != in {
		t.Errorf("EnsureDeclaration() modified text that already had declaration: %q", got)
	}
}
