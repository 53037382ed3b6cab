package decision

import (
	"fmt"
	"strings"
	"time"

	"github.com/adrve/cloud-analytics/internal/models"
	"github.com/samber/lo"
)

// Unit решает, публиковать ли stop-команду по списку детекций.
// Без состояния между вызовами: два подряд сработавших кадра дают две команды
type Unit struct {
	critical  map[string]struct{}
	threshold float64
	now       func() time.Time
}

func New(criticalClasses []string, threshold float64) *Unit {
	critical := make(map[string]struct{}, len(criticalClasses))
	for _, class := range criticalClasses {
		critical[strings.ToLower(class)] = struct{}{}
	}

	return &Unit{
		critical:  critical,
		threshold: threshold,
		now:       time.Now,
	}
}

// Evaluate возвращает одну stop-команду, если хотя бы одна детекция
// критического класса прошла порог, иначе nil
func (u *Unit) Evaluate(detections []models.Detection) *models.Command {
	triggering := lo.Filter(detections, func(d models.Detection, _ int) bool {
		_, ok := u.critical[strings.ToLower(d.Class)]
		return ok && d.Confidence >= u.threshold
	})

	if len(triggering) == 0 {
		return nil
	}

	reasons := lo.Map(triggering, func(d models.Detection, _ int) string {
		return fmt.Sprintf("%s (%.2f)", strings.ToLower(d.Class), d.Confidence)
	})

	return &models.Command{
		Command:   models.CommandStop,
		Reason:    "Critical objects detected: " + strings.Join(reasons, ", "),
		Timestamp: u.now().Unix(),
	}
}
