package export

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// defaultPanelHeight is used when a report declares no window height.
const defaultPanelHeight = 500

// CreatedObject summarizes one object a report says it created.
type CreatedObject struct {
	Ref         string
	Description string
	Name        string
	Type        string
	Link        string
}

// ReportLink is one linked HTML bundle or downloadable file in a report.
type ReportLink struct {
	URL         string `json:"URL"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Handle      string `json:"handle"`
	Label       string `json:"label"`
}

// ReportHTML describes the report's embedded or linked HTML region.
type ReportHTML struct {
	Height      string
	SetHeight   bool
	Direct      string
	IframeStyle string
	Links       []ReportLink
	Paths       []string
	LinkIdx     int
	FileLinks   []ReportLink
}

// ReportView is the render-ready view of an app's report object. A zero
// Present field means no report section is rendered at all.
type ReportView struct {
	Present       bool
	Objects       []CreatedObject
	Summary       string
	SummaryHeight string
	HTML          ReportHTML
}

// reportObject mirrors the stored KBaseReport.Report shape.
type reportObject struct {
	DirectHTML          string       `json:"direct_html"`
	DirectHTMLLinkIndex *int         `json:"direct_html_link_index"`
	FileLinks           []ReportLink `json:"file_links"`
	HTMLLinks           []ReportLink `json:"html_links"`
	HTMLWindowHeight    *int         `json:"html_window_height"`
	SummaryWindowHeight *int         `json:"summary_window_height"`
	TextMessage         string       `json:"text_message"`
	ObjectsCreated      []struct {
		Ref         string `json:"ref"`
		Description string `json:"description"`
	} `json:"objects_created"`
}

// buildReportView resolves the report named by the first execution result
// entry into a view model. An absent or malformed first entry yields an
// empty (not-present) view. Individual created-object lookups are tolerated:
// a failed lookup just omits that object.
func (e *Exporter) buildReportView(ctx context.Context, results []json.RawMessage) (ReportView, error) {
	var view ReportView
	if len(results) == 0 {
		return view, nil
	}
	var first struct {
		ReportName string `json:"report_name"`
		ReportRef  string `json:"report_ref"`
	}
	if err := json.Unmarshal(results[0], &first); err != nil || first.ReportName == "" || first.ReportRef == "" {
		return view, nil
	}

	objs, err := e.ws.GetObjects(ctx, []string{first.ReportRef})
	if err != nil {
		return view, fmt.Errorf("failed to fetch report %s: %w", first.ReportRef, err)
	}
	if len(objs) == 0 {
		return view, nil
	}
	var report reportObject
	if err := json.Unmarshal(objs[0].Data, &report); err != nil {
		return view, fmt.Errorf("failed to decode report %s: %w", first.ReportRef, err)
	}

	view.Present = true
	view.Objects = e.resolveCreatedObjects(ctx, report)
	view.Summary = report.TextMessage
	view.SummaryHeight = fmt.Sprintf("%dpx", heightOrDefault(report.SummaryWindowHeight))
	view.HTML = buildReportHTML(report, first.ReportRef)
	return view, nil
}

// resolveCreatedObjects batch-resolves the report's created objects,
// omitting any that fail to resolve.
func (e *Exporter) resolveCreatedObjects(ctx context.Context, report reportObject) []CreatedObject {
	if len(report.ObjectsCreated) == 0 {
		return nil
	}
	refs := make([]string, len(report.ObjectsCreated))
	for i, o := range report.ObjectsCreated {
		refs[i] = o.Ref
	}
	infos, err := e.ws.GetObjectInfo(ctx, refs, true)
	if err != nil {
		// Created-object summaries are best-effort decoration; the report
		// still renders without them.
		e.log.Warn("failed to resolve report created objects", zap.Error(err))
		return nil
	}
	var created []CreatedObject
	for i, info := range infos {
		if i >= len(report.ObjectsCreated) || info == nil {
			continue
		}
		objType := strings.SplitN(info.Type, "-", 2)[0]
		created = append(created, CreatedObject{
			Ref:         report.ObjectsCreated[i].Ref,
			Description: report.ObjectsCreated[i].Description,
			Name:        info.Name,
			Type:        objType[strings.LastIndex(objType, ".")+1:],
			Link:        e.host + "/#dataview/" + report.ObjectsCreated[i].Ref,
		})
	}
	return created
}

func buildReportHTML(report reportObject, reportRef string) ReportHTML {
	htmlView := ReportHTML{
		Height:    fmt.Sprintf("%dpx", heightOrDefault(report.HTMLWindowHeight)),
		SetHeight: true,
	}
	if report.DirectHTML != "" {
		// Height capping only makes sense for a full document; fragments
		// size themselves.
		if !strings.HasPrefix(report.DirectHTML, "<html") {
			htmlView.SetHeight = false
		}
		htmlView.Direct = "data:text/html;charset=utf-8," + quoteKeepingSlashes(report.DirectHTML)
	}

	if len(report.HTMLLinks) > 0 {
		idx := 0
		if i := report.DirectHTMLLinkIndex; i != nil && *i >= 0 && *i < len(report.HTMLLinks) {
			idx = *i
		}
		htmlView.Links = report.HTMLLinks
		htmlView.LinkIdx = idx
		htmlView.Paths = make([]string, len(report.HTMLLinks))
		for i, link := range report.HTMLLinks {
			htmlView.Paths[i] = fmt.Sprintf("/api/v1/%s/$/%d/%s", reportRef, i, link.Name)
		}
	}

	htmlView.FileLinks = report.FileLinks

	htmlView.IframeStyle = "max-height: " + htmlView.Height
	if htmlView.SetHeight {
		htmlView.IframeStyle += "; height: " + htmlView.Height
	} else {
		htmlView.IframeStyle += "; height: auto"
	}
	return htmlView
}

func heightOrDefault(h *int) int {
	if h == nil {
		return defaultPanelHeight
	}
	return *h
}

// quoteKeepingSlashes percent-encodes s for a data URI while leaving path
// separators readable.
func quoteKeepingSlashes(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), "%2F", "/")
}
