package pdf

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dgallion1/pdfextract/internal/extraction"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// NativeExtractor returns embedded image streams as stored in the PDF,
// keeping their original encoding and extension.
type NativeExtractor struct{}

func NewNativeExtractor() *NativeExtractor {
	return &NativeExtractor{}
}

func (e *NativeExtractor) Extract(ctx context.Context, path string) ([]extraction.Image, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	var images []extraction.Image
	var warnings []string
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		byObj, err := pdfcpu.ExtractPageImages(pctx, pageNr, false)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Could not list images on page %d: %s", pageNr, err))
			continue
		}

		imgs, warns := collectNative(pageNr, byObj)
		images = append(images, imgs...)
		warnings = append(warnings, warns...)
	}
	return images, warnings, nil
}

// collectNative reads one page's images in object-number order.
func collectNative(pageNr int, byObj map[int]model.Image) ([]extraction.Image, []string) {
	objNrs := make([]int, 0, len(byObj))
	for nr := range byObj {
		objNrs = append(objNrs, nr)
	}
	sort.Ints(objNrs)

	var images []extraction.Image
	var warnings []string
	for idx, nr := range objNrs {
		img := byObj[nr]
		if img.Reader == nil {
			warnings = append(warnings, fmt.Sprintf("Could not extract image %d from page %d: empty stream", idx, pageNr))
			continue
		}
		data, err := io.ReadAll(img)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Could not extract image %d from page %d: %s", idx, pageNr, err))
			continue
		}
		ext := nativeExt(img.FileType)
		images = append(images, extraction.Image{
			Page:     pageNr,
			Index:    idx,
			Bytes:    data,
			Ext:      ext,
			Filename: extraction.EmbeddedImageName(pageNr, idx, ext),
		})
	}
	return images, warnings
}

func nativeExt(fileType string) string {
	ext := strings.ToLower(strings.TrimPrefix(fileType, "."))
	switch ext {
	case "":
		return "png"
	case "jpeg":
		return "jpg"
	case "tiff":
		return "tif"
	}
	return ext
}
