package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
)

const (
	nsWordprocessing = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsDrawing        = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsODFText        = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"

	contentTypesPart = "[Content_Types].xml"
	wordMainType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

// textModel says which elements of a markup vocabulary carry text and which end a paragraph.
type textModel struct {
	space string
	// runs are elements whose character data is text. Nil means any character
	// data inside a paragraph counts.
	runs  map[string]bool
	paras map[string]bool
	tabs  map[string]bool
	// spaces are empty elements standing for one space.
	spaces map[string]bool
}

var (
	wordModel = textModel{
		space:  nsWordprocessing,
		runs:   map[string]bool{"t": true},
		paras:  map[string]bool{"p": true},
		tabs:   map[string]bool{"tab": true},
		spaces: map[string]bool{"br": true},
	}
	drawingModel = textModel{
		space: nsDrawing,
		runs:  map[string]bool{"t": true},
		paras: map[string]bool{"p": true},
	}
	odfModel = textModel{
		space:  nsODFText,
		paras:  map[string]bool{"p": true, "h": true},
		tabs:   map[string]bool{"tab": true},
		spaces: map[string]bool{"s": true, "line-break": true},
	}
)

// collectText streams r and writes one line per non-empty paragraph of m to b.
func collectText(r io.Reader, m textModel, b *strings.Builder) error {
	dec := xml.NewDecoder(r)
	var inRun, inPara int
	var para strings.Builder
	flush := func() {
		if line := strings.TrimSpace(para.String()); line != "" {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		para.Reset()
	}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			flush()
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != m.space {
				continue
			}
			switch local := t.Name.Local; {
			case m.paras[local]:
				inPara++
			case m.runs[local]:
				inRun++
			case m.tabs[local]:
				para.WriteByte('\t')
			case m.spaces[local]:
				para.WriteByte(' ')
			}
		case xml.EndElement:
			if t.Name.Space != m.space {
				continue
			}
			switch local := t.Name.Local; {
			case m.paras[local]:
				inPara--
				if inPara == 0 {
					flush()
				}
			case m.runs[local]:
				inRun--
			}
		case xml.CharData:
			if inRun > 0 || (m.runs == nil && inPara > 0) {
				para.Write(t)
			}
		}
	}
}

type zipParts struct {
	files map[string]*zip.File
}

func openZip(content []byte) (*zipParts, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("not a zip package: %w", err)
	}
	p := &zipParts{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		p.files[f.Name] = f
	}
	return p, nil
}

func (p *zipParts) open(name string) (io.ReadCloser, error) {
	f, ok := p.files[name]
	if !ok {
		return nil, fmt.Errorf("part %s not found", name)
	}
	return f.Open()
}

func (p *zipParts) collect(name string, m textModel, b *strings.Builder) error {
	rc, err := p.open(name)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := collectText(rc, m, b); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// wordMainPart finds the main document part from [Content_Types].xml, falling
// back to word/document.xml.
func (p *zipParts) wordMainPart() string {
	const fallback = "word/document.xml"
	rc, err := p.open(contentTypesPart)
	if err != nil {
		return fallback
	}
	defer rc.Close()
	var types struct {
		Overrides []struct {
			PartName    string `xml:"PartName,attr"`
			ContentType string `xml:"ContentType,attr"`
		} `xml:"Override"`
	}
	if err := xml.NewDecoder(rc).Decode(&types); err != nil {
		return fallback
	}
	for _, o := range types.Overrides {
		if o.ContentType == wordMainType {
			return strings.TrimPrefix(o.PartName, "/")
		}
	}
	return fallback
}

func extractDOCX(content []byte) (string, error) {
	p, err := openZip(content)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := p.collect(p.wordMainPart(), wordModel, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// extractPPTX reads slides in slide-number order.
func extractPPTX(content []byte) (string, error) {
	p, err := openZip(content)
	if err != nil {
		return "", err
	}
	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for name := range p.files {
		dir, file := path.Split(name)
		if dir != "ppt/slides/" || !strings.HasPrefix(file, "slide") || path.Ext(file) != ".xml" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(file, "slide"), ".xml"))
		if err != nil {
			continue
		}
		slides = append(slides, slide{n: n, name: name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var b strings.Builder
	for _, s := range slides {
		if err := p.collect(s.name, drawingModel, &b); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// extractODF reads content.xml of an OpenDocument text, spreadsheet or presentation.
func extractODF(content []byte) (string, error) {
	p, err := openZip(content)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := p.collect("content.xml", odfModel, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}
