package datarecording

import (
	"os"
	"strings"
	"time"
)

// ExecInfoTable is the table that records how the simulator was invoked.
const ExecInfoTable = "exec_info"

// ExecInfo is one property of the program execution.
type ExecInfo struct {
	Property string
	Value    string
}

// ExecRecorder records the command line, the working directory, and the
// start and end time of the program.
type ExecRecorder struct {
	recorder DataRecorder
	entries  []ExecInfo
}

// NewExecRecorder creates the exec_info table in the recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	recorder.CreateTable(ExecInfoTable, ExecInfo{})

	return &ExecRecorder{recorder: recorder}
}

// Start captures the information available when the program starts.
func (e *ExecRecorder) Start() {
	e.entries = append(e.entries,
		ExecInfo{"Start Time", timestamp()},
		ExecInfo{"Command", strings.Join(os.Args, " ")},
	)

	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}

	e.entries = append(e.entries, ExecInfo{"Working Directory", cwd})
}

// Record adds an extra property, such as the scenario name.
func (e *ExecRecorder) Record(property, value string) {
	e.entries = append(e.entries, ExecInfo{property, value})
}

// End writes the captured information along with the end time.
func (e *ExecRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.InsertData(ExecInfoTable, entry)
	}

	e.recorder.InsertData(ExecInfoTable, ExecInfo{"End Time", timestamp()})

	e.entries = nil

	e.recorder.Flush()
}

func timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05.000000000")
}
