package models

import "time"

type CommandAction string

const (
	CommandStop   CommandAction = "stop"
	CommandResume CommandAction = "resume"
)

type Source string

const (
	SourceEdge  Source = "edge"
	SourceCloud Source = "cloud"
)

// Источник команды — автоматика или оператор
type CommandOrigin string

const (
	OriginAuto   CommandOrigin = "auto"
	OriginManual CommandOrigin = "manual"
)

// FragmentNotification приходит из топика уведомлений при появлении нового фрагмента
type FragmentNotification struct {
	FragmentNumber string `json:"fragmentNumber"`
	DeviceID       string `json:"deviceId,omitempty"`
}

// ExtractionInvocation задаёт один запуск извлечения кадра и инференса
type ExtractionInvocation struct {
	StreamName     string `json:"streamName"`
	FragmentNumber string `json:"fragmentNumber"`
	DeviceID       string `json:"deviceId"`
}

// Detection представляет структуру одного обнаруженного объекта
type Detection struct {
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	Box        []float64 `json:"box"` // [x1, y1, x2, y2]
	Source     Source    `json:"source"`
}

// DetectionRecord строка таблицы detections: составной ключ (frame_id, ts, seq)
type DetectionRecord struct {
	FrameID     string    `json:"frameId"`
	Timestamp   int64     `json:"timestamp"`
	Seq         int       `json:"seq"`
	Detection   Detection `json:"detection"`
	FrameS3Path string    `json:"frameS3Path"`
	Degraded    bool      `json:"degraded"`
	TTL         int64     `json:"ttl"`
}

// Command полезная нагрузка топика команд устройства
type Command struct {
	Command   CommandAction  `json:"command"`
	Reason    string         `json:"reason,omitempty"`
	Timestamp int64          `json:"timestamp"`
	Params    map[string]any `json:"params,omitempty"`
}

// CommandRecord строка истории команд
type CommandRecord struct {
	ID        string        `json:"id"`
	DeviceID  string        `json:"device_id"`
	Command   CommandAction `json:"command"`
	Reason    string        `json:"reason"`
	Origin    CommandOrigin `json:"origin"`
	CreatedAt time.Time     `json:"created_at"`
}

// Heartbeat статус от edge-устройства
type Heartbeat struct {
	DeviceID  string    `json:"deviceId"`
	Status    string    `json:"status"`
	TimeStamp time.Time `json:"timestamp"`
}

type DeviceStatus string

const (
	DeviceOnline  DeviceStatus = "online"
	DeviceOffline DeviceStatus = "offline"
)

// Device Структура для устройств
type Device struct {
	ID       string       `json:"id"`
	Status   DeviceStatus `json:"status"`
	LastSeen time.Time    `json:"last_seen"`
}
