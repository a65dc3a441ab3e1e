package notifier

import (
	"fmt"
	"strings"

	"github.com/tessapp/ota/internal/logger"
	"github.com/tessapp/ota/internal/models"
	"github.com/tessapp/ota/internal/printer"
	"github.com/tessapp/ota/internal/store"
	"github.com/tessapp/ota/internal/utils"
)

const (
	borderColor = "\033[38;5;39m"
	resetColor  = "\033[0m"
	padding     = 2
)

// DisplayUpdateNotification shows a boxed notice when the last check left an
// available offer behind. Quiet when there is nothing to say.
func DisplayUpdateNotification(kv store.KV, currentVersion string) {
	var offer models.UpdateOffer
	if !store.ReadJSON(kv, store.KeyLastOffer, &offer) {
		return
	}
	if !offer.Available {
		return
	}
	DisplayOffer(&offer, currentVersion)
}

// DisplayOffer shows a formatted notification for an update offer.
func DisplayOffer(offer *models.UpdateOffer, currentVersion string) {
	p := printer.NewColorPrinter()

	var lines []string
	switch offer.Channel {
	case models.ChannelBundle:
		lines = []string{
			p.Success("Update Ready!"),
			fmt.Sprintf("%s %s", p.Info("A new code bundle is available:"), p.Success(offer.BundleID)),
			fmt.Sprintf("%s%s%s", p.Warning("Run "), p.Success("ota apply-bundle"), p.Warning(" to apply it instantly.")),
		}
	default:
		sizeNote := ""
		if offer.FileSizeBytes > 0 {
			sizeNote = p.Muted(" (%s)", utils.HumanSize(offer.FileSizeBytes))
		}
		lines = []string{
			p.Success("New Version Available!"),
			fmt.Sprintf("%s %s -> %s%s", p.Info("New version detected:"),
				p.Error(currentVersion), p.Success(offer.Version), sizeNote),
			fmt.Sprintf("%s%s%s", p.Warning("Run "), p.Success("ota download"), p.Warning(" to fetch it.")),
		}
		if offer.ForceUpdate {
			lines = append(lines, p.Error("This update is required."))
		}
	}

	maxWidth := utils.GetMaxWidth(lines) + padding*2
	topBottomBorder := borderColor + "╭" + strings.Repeat("─", maxWidth) + "╮" + resetColor
	sideBorder := borderColor + "│" + resetColor

	w := logger.Out()
	fmt.Fprintln(w, topBottomBorder)
	for _, line := range lines {
		paddingLeft := (maxWidth - len(utils.StripANSI(line))) / 2
		paddingRight := maxWidth - len(utils.StripANSI(line)) - paddingLeft
		fmt.Fprintf(w, "%s%s%s%s%s\n", sideBorder, strings.Repeat(" ", paddingLeft), line, strings.Repeat(" ", paddingRight), sideBorder)
	}
	fmt.Fprintln(w, borderColor+"╰"+strings.Repeat("─", maxWidth)+"╯"+resetColor)
}

// StatusRow is one line of the status table.
type StatusRow struct {
	Item  string
	Value string
}

func CreateStatusTable(title string, rows []StatusRow) {
	if title != "" {
		logger.Info("%s", title)
	}

	table := logger.CreateTable([]string{"Item", "Value"})

	for _, row := range rows {
		if err := table.Append([]string{row.Item, row.Value}); err != nil {
			logger.LogError("Error appending to table: %v", err)
			return
		}
	}

	if err := table.Render(); err != nil {
		logger.LogError("Error rendering table: %v", err)
		return
	}
}
