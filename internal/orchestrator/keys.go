package orchestrator

import (
	"fmt"
	"time"
)

// GroupID names the storage folder of one export request. It combines the
// source design with the request's creation time down to the millisecond.
func GroupID(designID string, created time.Time) string {
	t := created.UTC()
	return fmt.Sprintf("%s-%s%03dZ", designID, t.Format("20060102T150405"), t.Nanosecond()/int(time.Millisecond))
}

// StorageKey follows <namespace>/<group>/<group>_<variant>_<page>.<ext> with
// 1-based page numbers.
func StorageKey(namespace, groupID, variantCode string, page int, ext string) string {
	return fmt.Sprintf("%s/%s/%s_%s_%d.%s", namespace, groupID, groupID, variantCode, page, ext)
}
