package export

import (
	"encoding/json"
	"fmt"
	"strings"
)

// jobState is the normalized execution record. Both historical execution
// backends are folded into this one shape at the parse boundary so nothing
// downstream branches on backend vintage.
type jobState struct {
	Status     string
	Results    []json.RawMessage
	StartTime  int64 // ms epoch, 0 when absent
	FinishTime int64 // ms epoch, 0 when absent
}

// stateNewApp is the sentence for an app that has never been executed.
const stateNewApp = "This app is new, and hasn't been started."

// normalizeJobState decodes either job-state shape into the internal record.
//
// Status lives under "status" (newer backend) or "job_state" (older), and
// the older backend sometimes encodes it as a tuple whose second element is
// the state string. Results live under "result" or nested "job_output.result".
// Timestamp pairs are ("exec_start_time","finish_time") or
// ("running","finished"), both ms epochs.
func normalizeJobState(raw json.RawMessage) jobState {
	var js jobState
	if len(raw) == 0 {
		return js
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return js
	}

	js.Status = decodeStatus(fields["status"])
	if js.Status == "" {
		js.Status = decodeStatus(fields["job_state"])
	}
	if js.Status == "" {
		js.Status = "unknown"
	}

	js.Results = decodeResults(fields["result"])
	if js.Results == nil {
		var jobOutput struct {
			Result json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal(fields["job_output"], &jobOutput); err == nil {
			js.Results = decodeResults(jobOutput.Result)
		}
	}

	js.StartTime = decodeTimestamp(fields["exec_start_time"])
	js.FinishTime = decodeTimestamp(fields["finish_time"])
	if js.StartTime == 0 && js.FinishTime == 0 {
		js.StartTime = decodeTimestamp(fields["running"])
		js.FinishTime = decodeTimestamp(fields["finished"])
	}
	return js
}

func decodeStatus(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var tuple []json.RawMessage
	if err := json.Unmarshal(raw, &tuple); err == nil && len(tuple) > 1 {
		if err := json.Unmarshal(tuple[1], &s); err == nil {
			return s
		}
	}
	return ""
}

func decodeResults(raw json.RawMessage) []json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	return []json.RawMessage{raw}
}

func decodeTimestamp(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return ms
	}
	return 0
}

// wasCancelled reports whether a legacy job state carries a cancellation
// flag, under either spelling.
func wasCancelled(raw json.RawMessage) bool {
	var fields struct {
		Cancelled int `json:"cancelled"`
		Canceled  int `json:"canceled"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	return fields.Cancelled == 1 || fields.Canceled == 1
}

// jobStateSentence maps a raw job state onto one of the four human-readable
// sentence templates. rawState is the original blob, used only to refine the
// legacy "suspend" status via its cancellation flag.
func jobStateSentence(js jobState, rawState json.RawMessage) string {
	runtime := ""
	if js.StartTime > 0 && js.FinishTime > 0 && js.FinishTime >= js.StartTime {
		runtime = formatRuntime(js.FinishTime - js.StartTime)
	}

	status := strings.ToLower(js.Status)
	if status == "suspend" {
		// Suspended jobs without an explicit cancellation flag ended in an
		// error on the legacy backend.
		if wasCancelled(rawState) {
			status = "canceled"
		} else {
			status = "error"
		}
	}

	switch status {
	case "completed", "finished":
		if runtime != "" {
			return fmt.Sprintf("This job finished with no errors in %s.", runtime)
		}
		return "This job finished with no errors."
	case "error":
		if runtime != "" {
			return fmt.Sprintf("This job produced errors after %s.", runtime)
		}
		return "This job produced errors."
	case "canceled", "cancelled", "terminated":
		return "This job was canceled."
	default:
		// queued, estimating, running, in-progress, and anything
		// unrecognized all present as in-progress.
		if runtime != "" {
			return fmt.Sprintf("This job is in progress, and has been running for %s.", runtime)
		}
		return "This job is in progress."
	}
}

// formatRuntime renders a ms duration as a compact day/hour/minute/second
// string. Leading zero units are omitted, except that hours appear whenever
// days do, minutes whenever hours do, and seconds always.
func formatRuntime(ms int64) string {
	totalSec := ms / 1000
	days := totalSec / 86400
	hours := (totalSec % 86400) / 3600
	minutes := (totalSec % 3600) / 60
	seconds := totalSec % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || len(parts) > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || len(parts) > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))
	return strings.Join(parts, " ")
}
