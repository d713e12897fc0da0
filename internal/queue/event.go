// Package queue defines message payloads exchanged over the message broker.
package queue

// FaresLoadedEvent is published each time the fare chart is loaded into a
// fresh process.  It carries enough to spot a bad chart (zero stops, ragged
// rows) from the broker side without opening the workbook.
type FaresLoadedEvent struct {
    Workbook   string `json:"workbook"`
    Stops      int    `json:"stops"`
    RaggedRows int    `json:"ragged_rows"`
    Strict     bool   `json:"strict"`
    LoadedAt   string `json:"loaded_at"`
}
