package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docuglot/docuglot/constants"
	"github.com/docuglot/docuglot/internal/common"
)

// TesseractConfig configures the exec-backed extractor.
type TesseractConfig struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"

	Language string // default "eng"
	DPI      int    // rasterization DPI for PDFs, default 300
	MaxPages int    // 0 = no limit

	TessdataDir string
	PSM         int // e.g., 6 is good for a uniform block of text
	OEM         int // 1 = LSTM; leave 0 to use default
}

// TesseractExtractor shells out to tesseract (TSV mode) for images, and to
// pdftoppm + tesseract for PDFs. TSV rows carry per-word boxes and
// confidences; words are grouped back into line-level blocks.
type TesseractExtractor struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

func NewTesseractExtractor(cfg TesseractConfig, logger *slog.Logger) *TesseractExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &TesseractExtractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

func (e *TesseractExtractor) Extract(ctx context.Context, in Input) (Result, error) {
	start := time.Now()
	docType, err := checkInput(in)
	if err != nil {
		return Result{}, err
	}

	var (
		blocks []TextBlock
		pages  int
	)
	switch docType {
	case constants.TXT:
		// Plain text needs no recognition; reuse the line-splitting mock.
		res, err := NewMockExtractor(e.logger).Extract(ctx, in)
		if err != nil {
			return Result{}, err
		}
		res.Engine = "tesseract"
		return res, nil
	case constants.IMAGE:
		path, cleanup, err := e.spool(in, "page.img")
		if err != nil {
			return Result{}, err
		}
		defer cleanup()
		blocks, err = e.imageTSV(ctx, path, 0)
		if err != nil {
			return Result{}, err
		}
		pages = 1
	case constants.PDF:
		blocks, pages, err = e.pdfOCR(ctx, in)
		if err != nil {
			return Result{}, err
		}
	}

	if err := checkBlocks(blocks); err != nil {
		return Result{}, err
	}
	res := Result{
		Blocks:   blocks,
		Pages:    pages,
		Language: DetectLanguage(blocks),
		Engine:   "tesseract",
		Duration: time.Since(start),
	}
	e.logger.Debug("tesseract extraction complete",
		"filename", in.Filename, "blocks", len(blocks), "pages", pages, "language", res.Language)
	return res, nil
}

// spool writes input bytes to a temp file so external tools can read them.
func (e *TesseractExtractor) spool(in Input, name string) (string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "docuglot-ocr-*")
	if err != nil {
		return "", nil, fmt.Errorf("%w: temp dir: %v", common.ErrOCRFailure, err)
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	path := filepath.Join(tmpDir, name)
	if err := os.WriteFile(path, in.Data, 0o600); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("%w: spool input: %v", common.ErrOCRFailure, err)
	}
	return path, cleanup, nil
}

// imageTSV runs tesseract in TSV mode on one image. blockOffset keeps block
// ids unique across PDF pages.
func (e *TesseractExtractor) imageTSV(ctx context.Context, path string, blockOffset int) ([]TextBlock, error) {
	args := []string{path, "stdout", "-l", e.cfg.Language}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: tesseract: %v: %s", common.ErrOCRFailure, err, truncate(string(errb), 512))
	}
	blocks, err := parseTSV(string(out), blockOffset)
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

func (e *TesseractExtractor) pdfOCR(ctx context.Context, in Input) ([]TextBlock, int, error) {
	path, cleanup, err := e.spool(in, "doc.pdf")
	if err != nil {
		return nil, 0, err
	}
	defer cleanup()

	prefix := strings.TrimSuffix(path, ".pdf")
	// pdftoppm -r <dpi> -png <in.pdf> <prefix>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: pdftoppm: %v: %s", common.ErrOCRFailure, err, truncate(string(errb), 512))
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, 0, common.WrapError(common.ErrOCRFailure, "pdftoppm produced no pages")
	}

	var blocks []TextBlock
	for _, img := range matches {
		pageBlocks, err := e.imageTSV(ctx, img, len(blocks))
		if err != nil {
			return nil, 0, err
		}
		blocks = append(blocks, pageBlocks...)
	}
	return blocks, len(matches), nil
}

// parseTSV groups tesseract TSV word rows into line-level blocks.
// Columns: level page block par line word left top width height conf text.
func parseTSV(tsv string, blockOffset int) ([]TextBlock, error) {
	type lineKey struct{ page, block, par, line int }

	var (
		order  []lineKey
		texts  = make(map[lineKey][]string)
		confs  = make(map[lineKey][]float64)
		boxes  = make(map[lineKey]*TextBlock)
		header = true
	)
	for _, ln := range strings.Split(tsv, "\n") {
		if header {
			header = false
			continue
		}
		if strings.TrimSpace(ln) == "" {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 11 {
			return nil, fmt.Errorf("%w: malformed tsv row: %q", common.ErrOCRFailure, ln)
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue // structural rows (level < 5) carry conf "-1" and may lack the text column
		}
		if len(cols) < 12 {
			continue // recognized row without a text cell
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}
		key := lineKey{atoi(cols[1]), atoi(cols[2]), atoi(cols[3]), atoi(cols[4])}
		left, top := atoi(cols[6]), atoi(cols[7])
		width, height := atoi(cols[8]), atoi(cols[9])
		if _, seen := boxes[key]; !seen {
			order = append(order, key)
			boxes[key] = &TextBlock{X: left, Y: top, Width: width, Height: height}
		} else {
			b := boxes[key]
			right := maxInt(b.X+b.Width, left+width)
			bottom := maxInt(b.Y+b.Height, top+height)
			b.X = minInt(b.X, left)
			b.Y = minInt(b.Y, top)
			b.Width = right - b.X
			b.Height = bottom - b.Y
		}
		texts[key] = append(texts[key], word)
		confs[key] = append(confs[key], conf)
	}

	var blocks []TextBlock
	for _, key := range order {
		b := boxes[key]
		text := Normalize(strings.Join(texts[key], " "))
		if text == "" {
			continue
		}
		var sum float64
		for _, c := range confs[key] {
			sum += c
		}
		b.ID = fmt.Sprintf("block-%d", blockOffset+len(blocks)+1)
		b.Text = text
		b.Confidence = float32(sum / float64(len(confs[key])) / 100.0)
		blocks = append(blocks, *b)
	}
	return blocks, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
