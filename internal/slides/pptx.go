package slides

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const drawingNS = "http://schemas.openxmlformats.org/drawingml/2006/main"

var slidePartRegex = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// PPTXExtractor reads the text runs of every slide part of an OOXML deck.
type PPTXExtractor struct {
	Logger zerolog.Logger
}

func (e *PPTXExtractor) Extract(path string) []string {
	zr, err := zip.OpenReader(path)
	if err != nil {
		e.Logger.Warn().Err(err).Str("path", path).Msg("cannot open pptx")
		return nil
	}
	defer zr.Close()

	type part struct {
		n int
		f *zip.File
	}
	var parts []part
	for _, f := range zr.File {
		m := slidePartRegex.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		parts = append(parts, part{n, f})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].n < parts[j].n })

	var texts []string
	for _, p := range parts {
		text, err := slideText(p.f)
		if err != nil {
			e.Logger.Warn().Err(err).Str("part", p.f.Name).Msg("cannot read slide")
			return nil
		}
		if text = Normalize(text); text != "" {
			texts = append(texts, text)
		}
	}
	return texts
}

// slideText concatenates <a:t> runs; each <a:p> paragraph ends a line.
func slideText(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var sb strings.Builder
	dec := xml.NewDecoder(rc)
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", f.Name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == drawingNS && t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			if t.Name.Space != drawingNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
