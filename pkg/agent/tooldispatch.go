package agent

import "encoding/json"

// dispatchPlotTool executes one plot-tool call against viewer, decoding
// its JSON arguments per spec.md §4.10's command table. Unknown tool
// names and malformed arguments are returned as a text-only ToolResult
// rather than an error — a bad tool call from the LLM is recoverable
// conversation state, not a program fault.
func dispatchPlotTool(viewer *PlotViewer, tc ToolCall) ToolResult {
	switch tc.Name {
	case toolPlotAll:
		return viewer.PlotAll()

	case toolPlotWindow:
		var a struct {
			Start   int  `json:"start"`
			End     int  `json:"end"`
			YZoomed bool `json:"y_zoomed"`
		}
		if err := json.Unmarshal([]byte(tc.Arguments), &a); err != nil {
			return ToolResult{Desc: "error: " + err.Error()}
		}
		return viewer.PlotWindow(a.Start, a.End, a.YZoomed)

	case toolPlotWindowWithWindowSize:
		var a struct {
			Mid     int  `json:"mid"`
			Size    int  `json:"size"`
			YZoomed bool `json:"y_zoomed"`
		}
		if err := json.Unmarshal([]byte(tc.Arguments), &a); err != nil {
			return ToolResult{Desc: "error: " + err.Error()}
		}
		return viewer.PlotWindowWithWindowSize(a.Mid, a.Size, a.YZoomed)

	case toolPlotLeft:
		return viewer.PlotLeft()
	case toolPlotRight:
		return viewer.PlotRight()
	case toolPlotZoomInX:
		return viewer.PlotZoomInX()
	case toolPlotZoomOutX:
		return viewer.PlotZoomOutX()
	case toolPlotZoomInY:
		return viewer.PlotZoomInY()
	case toolPlotZoomOutY:
		return viewer.PlotZoomOutY()

	case toolPlotDerivative:
		var a struct {
			Channels []string `json:"channels"`
		}
		if err := json.Unmarshal([]byte(tc.Arguments), &a); err != nil {
			return ToolResult{Desc: "error: " + err.Error()}
		}
		return viewer.PlotDerivative(a.Channels)

	case toolPlotSecondDerivative:
		var a struct {
			Channels []string `json:"channels"`
		}
		if err := json.Unmarshal([]byte(tc.Arguments), &a); err != nil {
			return ToolResult{Desc: "error: " + err.Error()}
		}
		return viewer.PlotSecondDerivative(a.Channels)

	case toolPlotWithYRanges:
		var a struct {
			Ranges map[string][2]float64 `json:"ranges"`
		}
		if err := json.Unmarshal([]byte(tc.Arguments), &a); err != nil {
			return ToolResult{Desc: "error: " + err.Error()}
		}
		return viewer.PlotWithYRanges(a.Ranges)

	case toolLookupX:
		var a struct {
			Indices []int `json:"indices"`
		}
		if err := json.Unmarshal([]byte(tc.Arguments), &a); err != nil {
			return ToolResult{Desc: "error: " + err.Error()}
		}
		return viewer.LookupX(a.Indices)

	case toolLookupY:
		var a struct {
			Channel string    `json:"channel"`
			Values  []float64 `json:"values"`
		}
		if err := json.Unmarshal([]byte(tc.Arguments), &a); err != nil {
			return ToolResult{Desc: "error: " + err.Error()}
		}
		return viewer.LookupY(a.Channel, a.Values)

	case toolGetValue:
		return viewer.GetValue()

	default:
		return ToolResult{Desc: "error: unknown tool " + tc.Name}
	}
}

// isPlotTool reports whether name is one of the Plot-Tool Harness
// commands rather than a node's terminal task_result/planner tool.
func isPlotTool(name string) bool {
	switch name {
	case toolPlotAll, toolPlotWindow, toolPlotWindowWithWindowSize, toolPlotLeft, toolPlotRight,
		toolPlotZoomInX, toolPlotZoomOutX, toolPlotZoomInY, toolPlotZoomOutY,
		toolPlotDerivative, toolPlotSecondDerivative, toolPlotWithYRanges,
		toolLookupX, toolLookupY, toolGetValue:
		return true
	default:
		return false
	}
}
