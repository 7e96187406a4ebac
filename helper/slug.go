package helper

import (
	"fmt"

	"github.com/gosimple/slug"
)

// QRFileName builds the download name for a table's QR code, e.g. "table-7-a7f2.png".
func QRFileName(table int, code string) string {
	return slug.Make(fmt.Sprintf("table %d %s", table, code)) + ".png"
}
