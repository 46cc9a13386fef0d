package export

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"staticnarrative/internal/catalog"
	"staticnarrative/internal/kbase"
)

// Author is one page-level author credit.
type Author struct {
	ID   string
	Name string
	Path string
}

// AppCitations lists the publications one app asks to be cited.
type AppCitations struct {
	AppName      string
	Publications []kbase.Publication
}

// CitationGroup buckets citations under one release-tag heading.
type CitationGroup struct {
	Heading string
	Apps    []AppCitations
}

// Page is the fully assembled page-level model handed to the template.
type Page struct {
	Title           string
	Creator         string
	Host            string
	NarrativeLink   string
	Authors         []Author
	ScriptBundleURL string
	LogoURL         string
	Datestamp       string
	Citations       []CitationGroup
	MetaKeywords    string
	MetaDescription string
	Cells           []View
	Catalog         *catalog.Catalog
}

var citationTagHeadings = []struct {
	tag     string
	heading string
}{
	{"release", "Released Apps"},
	{"beta", "Apps in Beta"},
	{"dev", "Apps in development"},
}

// buildPage assembles page-level metadata around the enriched cells.
func (e *Exporter) buildPage(ctx context.Context, doc *Document, cat *catalog.Catalog, cells []View) *Page {
	citations, appNames := e.collectCitations(ctx, doc)

	dataTypes := make([]string, 0, len(cat.Types))
	for name := range cat.Types {
		dataTypes = append(dataTypes, name)
	}
	sort.Strings(dataTypes)
	appMeta := strings.Join(appNames, ", ")

	return &Page{
		Title:           doc.Metadata.Name,
		Creator:         doc.Metadata.Creator,
		Host:            e.host,
		NarrativeLink:   fmt.Sprintf("%s/narrative/%d", e.host, doc.Metadata.WsID),
		Authors:         e.resolveAuthors(ctx, doc.Metadata.WsID),
		ScriptBundleURL: e.assetsBaseURL + "/js/" + e.assetsVersion + "/staticNarrativeBundle.js",
		LogoURL:         e.assetsBaseURL + "/images/kbase-logos/logo-icon-46-46.png",
		Datestamp:       time.Now().Format("January 2, 2006"),
		Citations:       citations,
		MetaKeywords:    appMeta + ", " + strings.Join(dataTypes, ", "),
		MetaDescription: "A KBase Narrative that uses these Apps: " + appMeta,
		Cells:           cells,
		Catalog:         cat,
	}
}

// collectCitations scans the document for the distinct (tag, app id) pairs
// actually invoked, bulk-queries the method store per tag, and buckets the
// results under the fixed release/beta/dev headings in that order. Method
// store failures are tolerated per tag: that tag just contributes nothing.
func (e *Exporter) collectCitations(ctx context.Context, doc *Document) ([]CitationGroup, []string) {
	appsByTag := map[string]map[string]bool{}
	for _, cell := range doc.Cells {
		meta, ok, err := parseKBMeta(cell.Metadata.KBase)
		if err != nil || !ok || meta.Type != KindApp || meta.AppCell == nil {
			continue
		}
		tag := meta.AppCell.App.Tag
		if tag == "" {
			tag = "dev"
		}
		if appsByTag[tag] == nil {
			appsByTag[tag] = map[string]bool{}
		}
		appsByTag[tag][meta.AppCell.App.ID] = true
	}

	nameSet := map[string]bool{}
	citationsByTag := map[string][]AppCitations{}
	for tag, idSet := range appsByTag {
		ids := make([]string, 0, len(idSet))
		for id := range idSet {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		infos, err := e.nms.GetMethodFullInfo(ctx, tag, ids)
		if err != nil {
			e.log.Warn("failed to fetch app citations", zap.String("tag", tag), zap.Error(err))
			continue
		}
		for _, info := range infos {
			nameSet[info.Name] = true
			if len(info.Publications) > 0 {
				citationsByTag[tag] = append(citationsByTag[tag], AppCitations{
					AppName:      info.Name,
					Publications: info.Publications,
				})
			}
		}
	}

	var groups []CitationGroup
	for _, th := range citationTagHeadings {
		apps := citationsByTag[th.tag]
		if len(apps) == 0 {
			continue
		}
		sort.Slice(apps, func(i, j int) bool { return apps[i].AppName < apps[j].AppName })
		groups = append(groups, CitationGroup{Heading: th.heading, Apps: apps})
	}

	appNames := make([]string, 0, len(nameSet))
	for name := range nameSet {
		appNames = append(appNames, name)
	}
	sort.Strings(appNames)
	return groups, appNames
}

// resolveAuthors lists the workspace owner plus every principal with write
// or admin rights, display-name-resolved through the auth service. Name
// lookup failure falls back to raw user ids; the page still renders.
func (e *Exporter) resolveAuthors(ctx context.Context, wsID int) []Author {
	wsInfo, err := e.ws.GetWorkspaceInfo(ctx, wsID)
	if err != nil {
		e.log.Warn("failed to fetch workspace info for authors", zap.Int("ws_id", wsID), zap.Error(err))
		return nil
	}
	authorIDs := []string{wsInfo.Owner}

	perms, err := e.ws.GetPermissions(ctx, wsID)
	if err != nil {
		e.log.Warn("failed to fetch permissions for authors", zap.Int("ws_id", wsID), zap.Error(err))
		perms = nil
	}
	users := make([]string, 0, len(perms))
	for user := range perms {
		users = append(users, user)
	}
	sort.Strings(users)
	for _, user := range users {
		if user == "*" || user == wsInfo.Owner {
			continue
		}
		if p := perms[user]; p == "w" || p == "a" {
			authorIDs = append(authorIDs, user)
		}
	}

	names, err := e.auth.DisplayNames(ctx, e.token, authorIDs)
	if err != nil {
		e.log.Warn("failed to resolve author display names", zap.Error(err))
		names = nil
	}

	authors := make([]Author, 0, len(authorIDs))
	for _, id := range authorIDs {
		name := names[id]
		if name == "" {
			name = id
		}
		authors = append(authors, Author{
			ID:   id,
			Name: name,
			Path: e.profilePageURL + id,
		})
	}
	return authors
}
