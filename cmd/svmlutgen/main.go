// Command svmlutgen writes a Go source file holding a pre-computed SVM sector
// table as a string constant, for use with svm.MustROMTable.
//
// Usage (from go:generate in internal/logic/svm):
//
//	svmlutgen -precision 8 -scale 1000 -var DefaultROMTable -out lut_p8_s1000.go
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"log"
	"os"

	"github.com/cjeanneret/svmdrive/internal/logic/svm"
)

const entriesPerLine = 8

type params struct {
	pkg       string
	varName   string
	precision uint
	scaleMax  uint16
}

func main() {
	var (
		precision = flag.Uint("precision", 8, "Sector resolution in bits (3-12)")
		scale     = flag.Uint("scale", 1000, "Maximum table value (PWM period)")
		varName   = flag.String("var", "DefaultROMTable", "Name of the exported table variable")
		out       = flag.String("out", "", "Output file (stdout when empty)")
	)
	flag.Parse()

	if *precision < 3 || *precision > 12 {
		log.Fatalf("precision %d out of range 3-12", *precision)
	}
	if *scale == 0 || *scale > 0xFFFF {
		log.Fatalf("scale %d out of range 1-65535", *scale)
	}

	src, err := render(params{
		pkg:       "svm",
		varName:   *varName,
		precision: *precision,
		scaleMax:  uint16(*scale),
	})
	if err != nil {
		log.Fatal(err)
	}

	if *out == "" {
		os.Stdout.Write(src)
		return
	}
	if err := os.WriteFile(*out, src, 0o644); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
}

func constName(p params) string {
	return fmt.Sprintf("lutP%dS%d", p.precision, p.scaleMax)
}

// render builds the gofmt'ed source of the table file. The table has 2^P+1
// little endian uint16 entries, the layout expected by svm.ROMTable.
func render(p params) ([]byte, error) {
	steps := 1 << p.precision
	entries := make([]uint16, steps+1)
	for i := range entries {
		entries[i] = svm.Entry(i, steps, p.scaleMax)
	}

	name := constName(p)
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// Code generated by svmlutgen; DO NOT EDIT.\n\npackage %s\n\n", p.pkg)
	fmt.Fprintf(&buf, "// %s holds %d little endian entries for precision %d and scale %d.\n",
		name, len(entries), p.precision, p.scaleMax)
	fmt.Fprintf(&buf, "const %s = \"\" +\n", name)
	for i := 0; i < len(entries); i += entriesPerLine {
		end := min(i+entriesPerLine, len(entries))
		buf.WriteString("\t\"")
		for _, e := range entries[i:end] {
			fmt.Fprintf(&buf, "\\x%02x\\x%02x", byte(e), byte(e>>8))
		}
		buf.WriteString("\"")
		if end < len(entries) {
			buf.WriteString(" +")
		}
		buf.WriteString("\n")
	}

	fmt.Fprintf(&buf, "\n// %s is the precision %d table with a scale of %d.\n", p.varName, p.precision, p.scaleMax)
	fmt.Fprintf(&buf, "var %s = MustROMTable[P%d](%s, %d)\n", p.varName, p.precision, name, p.scaleMax)

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated table: %w", err)
	}
	return src, nil
}
