package xfa

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ErrNoXFA reports a PDF without an XFA datasets packet (a classic
// AcroForm document, or no form at all).
var ErrNoXFA = errors.New("pdf carries no XFA datasets packet")

const datasetsPacketName = "datasets"

// ExtractDatasets pulls the raw datasets packet out of a form PDF.
//
// The XFA entry is an array of alternating packet names and stream
// references; only the "datasets" stream holds field values, the rest
// (template, config, ...) describe layout and stay untouched.
func ExtractDatasets(pdfBytes []byte) ([]byte, error) {
	ctx, err := readContext(pdfBytes)
	if err != nil {
		return nil, err
	}

	_, sd, err := findDatasetsStream(ctx)
	if err != nil {
		return nil, err
	}

	if err := sd.Decode(); err != nil {
		return nil, fmt.Errorf("%w: decode datasets stream: %v", ErrTreeParse, err)
	}
	return sd.Content, nil
}

// InjectDatasets replaces the datasets packet of a form PDF with the
// given XML and returns the rewritten document. The input bytes are
// never modified; a failed injection produces no output.
func InjectDatasets(pdfBytes, datasetsXML []byte) ([]byte, error) {
	ctx, err := readContext(pdfBytes)
	if err != nil {
		return nil, err
	}

	ref, sd, err := findDatasetsStream(ctx)
	if err != nil {
		return nil, err
	}

	sd.Content = stripXMLDeclaration(datasetsXML)
	sd.Raw = nil
	if err := sd.Encode(); err != nil {
		return nil, fmt.Errorf("%w: encode datasets stream: %v", ErrTreeSerialize, err)
	}
	sd.Dict.Update("Length", types.Integer(len(sd.Raw)))

	entry, found := ctx.FindTableEntry(ref.ObjectNumber.Value(), ref.GenerationNumber.Value())
	if !found {
		return nil, fmt.Errorf("%w: datasets stream object %d missing from xref",
			ErrTreeSerialize, ref.ObjectNumber.Value())
	}
	entry.Object = *sd

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, fmt.Errorf("%w: write pdf: %v", ErrTreeSerialize, err)
	}
	return buf.Bytes(), nil
}

func readContext(pdfBytes []byte) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(pdfBytes), conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTreeParse, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTreeParse, err)
	}
	return ctx, nil
}

// findDatasetsStream walks Catalog → AcroForm → XFA and returns the
// indirect reference and stream dict of the datasets packet.
func findDatasetsStream(ctx *model.Context) (types.IndirectRef, *types.StreamDict, error) {
	var zero types.IndirectRef

	rootDict, err := ctx.Catalog()
	if err != nil {
		return zero, nil, fmt.Errorf("%w: no catalog: %v", ErrTreeParse, err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return zero, nil, fmt.Errorf("%w: no AcroForm dictionary", ErrNoXFA)
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil || acroFormDict == nil {
		return zero, nil, fmt.Errorf("%w: unreadable AcroForm dictionary", ErrNoXFA)
	}

	xfaObj, found := acroFormDict.Find("XFA")
	if !found {
		return zero, nil, ErrNoXFA
	}
	xfaArr, err := ctx.DereferenceArray(xfaObj)
	if err != nil || xfaArr == nil {
		// A single-stream XFA entry is valid PDF but not the packet
		// layout these forms use.
		return zero, nil, fmt.Errorf("%w: XFA entry is not a packet array", ErrNoXFA)
	}

	for i := 0; i+1 < len(xfaArr); i += 2 {
		name, err := ctx.DereferenceStringOrHexLiteral(xfaArr[i], model.V10, nil)
		if err != nil || name != datasetsPacketName {
			continue
		}
		ref, ok := xfaArr[i+1].(types.IndirectRef)
		if !ok {
			return zero, nil, fmt.Errorf("%w: datasets packet is not an indirect stream", ErrTreeParse)
		}
		sd, _, err := ctx.DereferenceStreamDict(ref)
		if err != nil || sd == nil {
			return zero, nil, fmt.Errorf("%w: unreadable datasets stream", ErrTreeParse)
		}
		return ref, sd, nil
	}
	return zero, nil, fmt.Errorf("%w: no datasets packet in XFA array", ErrNoXFA)
}

// stripXMLDeclaration drops a leading BOM and <?xml ...?> declaration;
// packets embedded in the XFA array carry neither.
func stripXMLDeclaration(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("<?xml")) {
		if idx := bytes.Index(trimmed, []byte("?>")); idx != -1 {
			return bytes.TrimLeft(trimmed[idx+2:], " \t\r\n")
		}
	}
	return data
}
