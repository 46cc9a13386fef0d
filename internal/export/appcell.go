package export

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// appCellMeta mirrors the appCell blob inside kbase cell metadata.
type appCellMeta struct {
	App    appMeta                    `json:"app"`
	Params map[string]json.RawMessage `json:"params"`
	Exec   *execMeta                  `json:"exec"`
}

type appMeta struct {
	ID      string  `json:"id"`
	Tag     string  `json:"tag"`
	Version string  `json:"version"`
	Spec    appSpec `json:"spec"`
}

type appSpec struct {
	Info struct {
		Icon struct {
			URL string `json:"url"`
		} `json:"icon"`
	} `json:"info"`
	Parameters []ParamSpec `json:"parameters"`
}

type execMeta struct {
	JobState         json.RawMessage `json:"jobState"`
	OutputWidgetInfo json.RawMessage `json:"outputWidgetInfo"`
}

// ParamSpec is one declared parameter from the stored app spec.
type ParamSpec struct {
	ID          string `json:"id"`
	UIName      string `json:"ui_name"`
	ShortHint   string `json:"short_hint"`
	FieldType   string `json:"field_type"`
	UIClass     string `json:"ui_class"`
	TextOptions *struct {
		ValidWsTypes []string `json:"valid_ws_types"`
	} `json:"text_options"`
}

// acceptsObjects reports whether the spec restricts this parameter to
// workspace object types, which is what licenses UPA-to-name translation.
func (p ParamSpec) acceptsObjects() bool {
	return p.FieldType == "text" && p.TextOptions != nil && len(p.TextOptions.ValidWsTypes) > 0
}

// Param pairs a declared parameter with its (possibly translated) value.
type Param struct {
	Spec  ParamSpec
	Value any
}

// ParamGroups buckets parameters by their declared UI class, preserving the
// spec's original order within each bucket.
type ParamGroups struct {
	Input     []Param
	Output    []Param
	Parameter []Param
}

// OutputView carries an app cell's stored execution output.
type OutputView struct {
	Widget json.RawMessage
	Result []json.RawMessage
	Report ReportView
}

// AppView is the render-ready model of one app invocation cell.
type AppView struct {
	Title      string
	Subtitle   string
	Version    string
	ID         string
	Tag        string
	CatalogURL string
	Params     ParamGroups
	Output     OutputView
	JobState   string
}

// processAppCell builds the app view model: static header from spec info,
// classified parameters with UPA values translated to object names, stored
// execution output with its report view, and the human-readable job state
// sentence.
func (e *Exporter) processAppCell(ctx context.Context, meta *kbMeta) (*AppView, error) {
	app := meta.AppCell
	view := &AppView{
		Title:      meta.Attributes.Title,
		Subtitle:   meta.Attributes.Subtitle,
		Version:    app.App.Version,
		ID:         app.App.ID,
		Tag:        app.App.Tag,
		CatalogURL: meta.Attributes.Info.URL,
		JobState:   stateNewApp,
	}

	view.Params = e.classifyParams(ctx, app.App.Spec.Parameters, app.Params)

	if app.Exec != nil {
		js := normalizeJobState(app.Exec.JobState)
		view.Output.Widget = app.Exec.OutputWidgetInfo
		view.Output.Result = js.Results
		view.JobState = jobStateSentence(js, app.Exec.JobState)

		report, err := e.buildReportView(ctx, js.Results)
		if err != nil {
			return nil, err
		}
		view.Output.Report = report
	}
	return view, nil
}

// classifyParams runs the two-pass parameter translation. Pass one collects
// every UPA-shaped value belonging to an object-typed parameter and resolves
// them all in one bulk info lookup; pass two substitutes display names and
// buckets each parameter under its declared UI class. Values that fail to
// resolve pass through unchanged.
func (e *Exporter) classifyParams(ctx context.Context, specs []ParamSpec, values map[string]json.RawMessage) ParamGroups {
	decoded := make(map[string]any, len(values))
	var refs []string
	for _, spec := range specs {
		raw, ok := values[spec.ID]
		if !ok {
			continue
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			continue
		}
		decoded[spec.ID] = value
		if !spec.acceptsObjects() {
			continue
		}
		for _, s := range stringValues(value) {
			if isUPA(s) {
				refs = append(refs, s)
			}
		}
	}

	names := e.resolveObjectNames(ctx, refs)

	var groups ParamGroups
	for _, spec := range specs {
		value := decoded[spec.ID]
		if spec.acceptsObjects() {
			value = substituteNames(value, names)
		}
		param := Param{Spec: spec, Value: value}
		switch spec.UIClass {
		case "input":
			groups.Input = append(groups.Input, param)
		case "output":
			groups.Output = append(groups.Output, param)
		default:
			groups.Parameter = append(groups.Parameter, param)
		}
	}
	return groups
}

// resolveObjectNames bulk-resolves refs to display names. Resolution is
// best-effort: on failure the returned map is simply empty and values pass
// through untranslated.
func (e *Exporter) resolveObjectNames(ctx context.Context, refs []string) map[string]string {
	names := map[string]string{}
	if len(refs) == 0 {
		return names
	}
	infos, err := e.ws.GetObjectInfo(ctx, refs, true)
	if err != nil {
		e.log.Warn("failed to resolve parameter object names", zap.Error(err))
		return names
	}
	for i, info := range infos {
		if info == nil || i >= len(refs) {
			continue
		}
		names[refs[i]] = info.Name
	}
	return names
}

// stringValues flattens a scalar or list parameter value into its string
// elements.
func stringValues(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// substituteNames swaps UPA values for their resolved object names,
// element-wise for lists. Unresolved values pass through unchanged.
func substituteNames(value any, names map[string]string) any {
	switch v := value.(type) {
	case string:
		if name, ok := names[v]; ok {
			return name
		}
		return v
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			if s, ok := item.(string); ok {
				if name, found := names[s]; found {
					out[i] = name
					continue
				}
			}
			out[i] = item
		}
		return out
	default:
		return value
	}
}
