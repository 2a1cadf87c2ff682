package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"sort"

	"github.com/dgallion1/pdfextract/internal/extraction"
	"github.com/tsawler/tabula/contentstream"
	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/pages"
	"github.com/tsawler/tabula/reader"
)

// RenderExtractor decodes embedded raster images to PNG. Pages without
// embedded images but with drawings are rasterized whole instead.
type RenderExtractor struct {
	raster *Rasterizer
	encode func(reader.PageImage) ([]byte, error)
}

func NewRenderExtractor(raster *Rasterizer) *RenderExtractor {
	return &RenderExtractor{
		raster: raster,
		encode: encodePNG,
	}
}

func (e *RenderExtractor) Extract(ctx context.Context, path string) ([]extraction.Image, []string, error) {
	r, err := reader.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open pdf: %w", err)
	}
	defer r.Close()

	numPages, err := r.PageCount()
	if err != nil {
		return nil, nil, fmt.Errorf("page count: %w", err)
	}

	var pr PageRenderer
	defer func() {
		if pr != nil {
			pr.Close()
		}
	}()

	var images []extraction.Image
	var warnings []string
	for i := 0; i < numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		pageNum := i + 1

		page, err := r.GetPage(i)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Could not read page %d: %s", pageNum, err))
			continue
		}

		embedded, err := r.ExtractPageImages(page)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Could not list images on page %d: %s", pageNum, err))
		}
		if len(embedded) > 0 {
			imgs, warns := e.encodePage(pageNum, embedded)
			images = append(images, imgs...)
			warnings = append(warnings, warns...)
			continue
		}

		// Fallback failures are skipped without a message.
		if e.raster == nil || !hasVisualContent(r, page) {
			continue
		}
		if pr == nil {
			if pr, err = e.raster.Open(ctx, path); err != nil {
				pr = nil
				continue
			}
		}
		data, err := pr.Render(ctx, pageNum)
		if err != nil {
			continue
		}
		images = append(images, extraction.Image{
			Page:     pageNum,
			Index:    0,
			Bytes:    data,
			Ext:      "png",
			Filename: extraction.VisualContentName(pageNum),
		})
	}
	return images, warnings, nil
}

// encodePage converts one page's embedded images, skipping any that fail.
func (e *RenderExtractor) encodePage(pageNum int, embedded []reader.PageImage) ([]extraction.Image, []string) {
	// XObject resources come back in map order.
	sort.SliceStable(embedded, func(a, b int) bool { return embedded[a].Name < embedded[b].Name })

	var images []extraction.Image
	var warnings []string
	for idx, img := range embedded {
		data, err := e.encode(img)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Could not extract image %d from page %d: %s", idx, pageNum, err))
			continue
		}
		images = append(images, extraction.Image{
			Page:     pageNum,
			Index:    idx,
			Bytes:    data,
			Ext:      "png",
			Filename: extraction.EmbeddedImageName(pageNum, idx, "png"),
		})
	}
	return images, warnings
}

// encodePNG converts an image XObject to PNG. DCT streams still hold the
// JPEG file, and ICCBased pixels are read by their component count.
func encodePNG(img reader.PageImage) ([]byte, error) {
	switch img.Filter {
	case "DCTDecode", "DCT":
		decoded, err := jpeg.Decode(bytes.NewReader(img.Data))
		if err != nil {
			return nil, fmt.Errorf("decode jpeg: %w", err)
		}
		return writePNG(decoded)
	case "JPXDecode":
		return nil, errors.New("JPEG 2000 images are not supported")
	}
	if img.ColorSpace == "ICCBased" && img.BitsPerComponent == 8 {
		if m := iccImage(img); m != nil {
			return writePNG(m)
		}
	}
	return img.ToPNG()
}

// iccImage infers 1, 3 or 4 components from the data length. It returns
// nil when the length does not fit any of them.
func iccImage(img reader.PageImage) image.Image {
	pixels := img.Width * img.Height
	if pixels <= 0 {
		return nil
	}
	rect := image.Rect(0, 0, img.Width, img.Height)
	switch len(img.Data) / pixels {
	case 1:
		return &image.Gray{Pix: img.Data[:pixels], Stride: img.Width, Rect: rect}
	case 3:
		m := image.NewRGBA(rect)
		for i := 0; i < pixels; i++ {
			copy(m.Pix[i*4:i*4+3], img.Data[i*3:i*3+3])
			m.Pix[i*4+3] = 0xff
		}
		return m
	case 4:
		return &image.CMYK{Pix: img.Data[:pixels*4], Stride: img.Width * 4, Rect: rect}
	}
	return nil
}

func writePNG(m image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// hasVisualContent reports whether a page draws rectangles or curves, or
// places form XObjects (figures).
func hasVisualContent(r *reader.Reader, page *pages.Page) bool {
	if hasFormXObject(r, page) {
		return true
	}

	contents, err := page.Contents()
	if err != nil {
		return false
	}
	for _, obj := range contents {
		stream, ok := obj.(*core.Stream)
		if !ok {
			continue
		}
		data, err := stream.Decode()
		if err != nil {
			continue
		}
		ops, err := contentstream.NewParser(data).Parse()
		if err != nil {
			continue
		}
		if drawsShapes(ops) {
			return true
		}
	}
	return false
}

func drawsShapes(ops []contentstream.Operation) bool {
	for _, op := range ops {
		switch op.Operator {
		case "re", "c", "v", "y":
			return true
		}
	}
	return false
}

func hasFormXObject(r *reader.Reader, page *pages.Page) bool {
	resources, err := page.Resources()
	if err != nil {
		return false
	}
	xobjectObj := resources.Get("XObject")
	if xobjectObj == nil {
		return false
	}
	resolved, err := r.Resolve(xobjectObj)
	if err != nil {
		return false
	}
	xobjects, ok := resolved.(core.Dict)
	if !ok {
		return false
	}
	for _, xobj := range xobjects {
		obj, err := r.Resolve(xobj)
		if err != nil {
			continue
		}
		stream, ok := obj.(*core.Stream)
		if !ok {
			continue
		}
		if subtype, ok := stream.Dict.GetName("Subtype"); ok && subtype == "Form" {
			return true
		}
	}
	return false
}
