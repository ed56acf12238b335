package renderer

import "github.com/df07/go-pathtracer/pkg/core"

// RenderTask is a contiguous range of image rows [StartRow, EndRow)
type RenderTask struct {
	StartRow int
	EndRow   int
}

// RowResult holds the finished pixels of one row
type RowResult struct {
	Row    int
	Pixels []core.Vec3
}

// TaskResult contains every row rendered for a task
type TaskResult struct {
	Task RenderTask
	Rows []RowResult
}

// PartitionRows splits height rows into tasks of rowsPerTask rows each.
// The last task takes the remainder, so every row is covered exactly once.
func PartitionRows(height, rowsPerTask int) []RenderTask {
	if rowsPerTask <= 0 {
		rowsPerTask = 1
	}
	tasks := make([]RenderTask, 0, (height+rowsPerTask-1)/rowsPerTask)
	for start := 0; start < height; start += rowsPerTask {
		tasks = append(tasks, RenderTask{StartRow: start, EndRow: min(start+rowsPerTask, height)})
	}
	return tasks
}
