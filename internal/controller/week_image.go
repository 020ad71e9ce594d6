package controller

import (
	"bytes"
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"github.com/Freeeeeet/classroom_scheduler/internal/timeslot"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Константы размеров и отступов
const (
	imageWidth       = 1400
	imageHeight      = 900
	headerHeight     = 100
	leftLabelsWidth  = 80
	legendWidth      = 140
	dayPaddingX      = 6
	cellPaddingY     = 2
	slotBorderRadius = 5.0
	totalDaysInWeek  = 7
)

// Константы шрифтов
const (
	titleFontSize      = 25.0
	dayFontSize        = 22.0
	hourLabelFontSize  = 16.0
	legendItemFontSize = 13.0
)

// Цветовая схема; заливки слотов непрозрачные
var (
	bgColor        = color.RGBA{245, 246, 248, 255}
	textColor      = color.RGBA{80, 85, 90, 220}
	hourLabelColor = color.RGBA{110, 115, 120, 200}
	hourLineColor  = color.NRGBA{150, 150, 150, 255}
	todayBgColor   = color.NRGBA{255, 99, 71, 125}
	evenDayColor   = color.NRGBA{240, 240, 240, 255}
	oddDayColor    = color.NRGBA{220, 220, 220, 255}

	slotNoneColor      = color.RGBA{228, 229, 232, 255}
	slotAvailableColor = color.RGBA{133, 193, 85, 255}
	slotReservedColor  = color.RGBA{255, 182, 193, 255}

	legendItemColor = color.RGBA{70, 74, 78, 220}
)

type fontStyle int

const (
	fontRegular fontStyle = iota
	fontBold
)

var (
	fontsMu     sync.Mutex
	cachedFonts = make(map[fontStyle]*opentype.Font)
)

// hourRange — отображаемые часы, включительно
type hourRange struct {
	start int
	end   int
	total int
}

// weekLayout — геометрия сетки
type weekLayout struct {
	hours      hourRange
	dayWidth   int
	cellHeight float64
}

// loadFont ставит шрифт Go нужного размера или basicfont если разбор не удался
func loadFont(dc *gg.Context, size float64, style fontStyle) {
	fontsMu.Lock()
	parsed, ok := cachedFonts[style]
	if !ok {
		data := goregular.TTF
		if style == fontBold {
			data = gobold.TTF
		}
		var err error
		parsed, err = opentype.Parse(data)
		if err != nil {
			parsed = nil
		}
		cachedFonts[style] = parsed
	}
	fontsMu.Unlock()

	if parsed != nil {
		face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err == nil {
			dc.SetFontFace(face)
			return
		}
	}
	dc.SetFontFace(basicfont.Face7x13)
}

// GenerateWeekImage рисует сетку NONE/AVAILABLE/RESERVED недели, начинающейся с weekStart.
// statuses — карта "{Monday}-{hour}" -> статус; диапазон часов берётся из её ключей.
func GenerateWeekImage(weekStart, today timeslot.CalendarDate, statuses map[string]model.SlotStatus) ([]byte, error) {
	layout := newWeekLayout(statuses)

	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetColor(bgColor)
	dc.Clear()

	drawHeader(dc, weekStart)
	drawHourLabels(dc, layout)

	day := weekStart
	for dayIndex := 0; dayIndex < totalDaysInWeek; dayIndex++ {
		drawDayBackground(dc, layout, dayIndex, day == today)
		drawDayHeader(dc, layout, dayIndex, day)
		drawHourLines(dc, layout, dayIndex)
		drawCells(dc, layout, dayIndex, day.Weekday(), statuses)
		day = day.AddDays(1)
	}

	drawLegend(dc, layout)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode week image: %w", err)
	}
	return buf.Bytes(), nil
}

func newWeekLayout(statuses map[string]model.SlotStatus) weekLayout {
	hours := calculateHourRange(statuses)
	return weekLayout{
		hours:      hours,
		dayWidth:   (imageWidth - leftLabelsWidth - legendWidth) / totalDaysInWeek,
		cellHeight: float64(imageHeight-headerHeight) / float64(hours.total),
	}
}

// calculateHourRange определяет диапазон часов по ключам карты
func calculateHourRange(statuses map[string]model.SlotStatus) hourRange {
	minHour, maxHour := 24, -1
	for key := range statuses {
		i := strings.LastIndex(key, "-")
		if i < 0 {
			continue
		}
		hour, err := strconv.Atoi(key[i+1:])
		if err != nil || hour < 0 || hour > 23 {
			continue
		}
		minHour = min(minHour, hour)
		maxHour = max(maxHour, hour)
	}
	if maxHour < 0 {
		minHour, maxHour = 0, 23
	}
	return hourRange{start: minHour, end: maxHour, total: maxHour - minHour + 1}
}

// cellBounds — прямоугольник ячейки (день, час) без отступов
func (l weekLayout) cellBounds(dayIndex, hour int) (x, y, w, h float64) {
	x = float64(leftLabelsWidth + dayIndex*l.dayWidth)
	y = float64(headerHeight) + float64(hour-l.hours.start)*l.cellHeight
	return x, y, float64(l.dayWidth), l.cellHeight
}

// drawHeader рисует заголовок с диапазоном дат
func drawHeader(dc *gg.Context, weekStart timeslot.CalendarDate) {
	start := weekStart.Time()
	end := weekStart.AddDays(totalDaysInWeek - 1).Time()

	title := getMonthNameRussian(start.Month())
	if start.Month() != end.Month() {
		title += " - " + getMonthNameRussian(end.Month())
	}
	title += fmt.Sprintf("  %s - %s", start.Format("02.01"), end.Format("02.01.2006"))

	loadFont(dc, titleFontSize, fontBold)
	dc.SetColor(textColor)
	dc.DrawStringAnchored(title, float64(leftLabelsWidth), float64(headerHeight)/4, 0, 0.5)
}

// drawHourLabels рисует колонку с часами слева
func drawHourLabels(dc *gg.Context, l weekLayout) {
	loadFont(dc, hourLabelFontSize, fontRegular)
	dc.SetColor(hourLabelColor)

	for hour := l.hours.start; hour <= l.hours.end; hour++ {
		_, y, _, _ := l.cellBounds(0, hour)
		dc.DrawStringAnchored(fmt.Sprintf("%02d:00", hour), float64(leftLabelsWidth)-10, y, 1, 0.5)
	}
}

func drawDayBackground(dc *gg.Context, l weekLayout, dayIndex int, isToday bool) {
	switch {
	case isToday:
		dc.SetColor(todayBgColor)
	case dayIndex%2 == 0:
		dc.SetColor(evenDayColor)
	default:
		dc.SetColor(oddDayColor)
	}
	x, y, w, _ := l.cellBounds(dayIndex, l.hours.start)
	dc.DrawRectangle(x, y, w, float64(imageHeight-headerHeight))
	dc.Fill()
}

// drawDayHeader рисует день недели и дату над колонкой
func drawDayHeader(dc *gg.Context, l weekLayout, dayIndex int, date timeslot.CalendarDate) {
	x, y, w, _ := l.cellBounds(dayIndex, l.hours.start)

	loadFont(dc, dayFontSize, fontBold)
	dc.SetColor(textColor)
	dc.DrawStringAnchored(date.Time().Format("02.01"), x+w/2, y, 0.5, -1)
	dc.DrawStringAnchored(getWeekdayShort(date.Weekday()), x+w/2, y, 0.5, -0.2)
}

func drawHourLines(dc *gg.Context, l weekLayout, dayIndex int) {
	dc.SetLineWidth(0.3)
	dc.SetColor(hourLineColor)

	for hour := l.hours.start; hour <= l.hours.end+1; hour++ {
		x, y, w, _ := l.cellBounds(dayIndex, hour)
		dc.DrawLine(x, y, x+w, y)
		dc.Stroke()
	}
}

// drawCells заливает каждую ячейку дня цветом её статуса
func drawCells(dc *gg.Context, l weekLayout, dayIndex int, weekday time.Weekday, statuses map[string]model.SlotStatus) {
	for hour := l.hours.start; hour <= l.hours.end; hour++ {
		status, ok := statuses[timeslot.SlotKey(weekday, hour)]
		if !ok {
			continue
		}
		x, y, w, h := l.cellBounds(dayIndex, hour)
		dc.SetColor(getSlotColor(status))
		dc.DrawRoundedRectangle(x+dayPaddingX, y+cellPaddingY, w-2*dayPaddingX, h-2*cellPaddingY, slotBorderRadius)
		dc.Fill()
	}
}

// getSlotColor возвращает цвет ячейки по статусу слота
func getSlotColor(status model.SlotStatus) color.RGBA {
	switch status {
	case model.SlotStatusAvailable:
		return slotAvailableColor
	case model.SlotStatusReserved:
		return slotReservedColor
	default:
		return slotNoneColor
	}
}

// drawLegend рисует легенду справа
func drawLegend(dc *gg.Context, l weekLayout) {
	legendX := float64(leftLabelsWidth+totalDaysInWeek*l.dayWidth) + 10
	liY := float64(imageHeight) - 100.0

	items := []struct {
		label string
		clr   color.Color
	}{
		{"Свободно", slotAvailableColor},
		{"Занято", slotReservedColor},
		{"Закрыто", slotNoneColor},
	}

	const boxW, boxH = 20.0, 14.0
	for _, item := range items {
		dc.SetColor(item.clr)
		dc.DrawRoundedRectangle(legendX, liY, boxW, boxH, 3)
		dc.Fill()

		loadFont(dc, legendItemFontSize, fontRegular)
		dc.SetColor(legendItemColor)
		dc.DrawStringAnchored(item.label, legendX+boxW+8, liY+boxH/2+1, 0, 0.2)
		liY += boxH + 14
	}
}

// короткие дни недели
func getWeekdayShort(weekday time.Weekday) string {
	weekdays := map[time.Weekday]string{
		time.Monday:    "Пн",
		time.Tuesday:   "Вт",
		time.Wednesday: "Ср",
		time.Thursday:  "Чт",
		time.Friday:    "Пт",
		time.Saturday:  "Сб",
		time.Sunday:    "Вс",
	}
	return weekdays[weekday]
}

// названия месяцев на русском
func getMonthNameRussian(month time.Month) string {
	months := map[time.Month]string{
		time.January:   "Январь",
		time.February:  "Февраль",
		time.March:     "Март",
		time.April:     "Апрель",
		time.May:       "Май",
		time.June:      "Июнь",
		time.July:      "Июль",
		time.August:    "Август",
		time.September: "Сентябрь",
		time.October:   "Октябрь",
		time.November:  "Ноябрь",
		time.December:  "Декабрь",
	}
	return months[month]
}
