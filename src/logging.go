package lockin

/*------------------------------------------------------------------
 *
 * Purpose:	Shared structured logger for the control kernel.
 *
 * Description:	charmbracelet/log gives leveled, structured output --
 *		"what happened, how severe", plus key/value fields -- used
 *		by the engine, DAQ backends, control plane and config
 *		reader instead of plain fmt.Printf.
 *
 *------------------------------------------------------------------*/

import (
	"os"

	"github.com/charmbracelet/log"
)

// Log is the package-level logger used by the engine, DAQ backends,
// control plane and config reader. Tests may redirect its output.
var Log = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	Prefix:          "fbl",
})
