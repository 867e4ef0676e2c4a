package workfossa

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fossawork/fossawork/internal/calculator"
)

// "Day 2 of 3" in the visit column marks a multi-day continuation.
var visitDayPattern = regexp.MustCompile(`(?i)day\s*(\d+)\s*of\s*(\d+)`)

// parseWorkOrders extracts work orders from the portal's work order list
// page. Rows without a job id (header fragments, ad banners the portal
// occasionally injects) are skipped.
func parseWorkOrders(doc *goquery.Document) []calculator.WorkOrder {
	var orders []calculator.WorkOrder

	doc.Find("tr.work-order").Each(func(_ int, row *goquery.Selection) {
		field := func(name string) string {
			return strings.TrimSpace(row.Find(`td[data-field="` + name + `"]`).Text())
		}

		wo := calculator.WorkOrder{
			JobID:         field("job-id"),
			StoreNumber:   field("store-number"),
			CustomerName:  field("customer"),
			ServiceCode:   field("service-code"),
			ScheduledDate: field("scheduled-date"),
			ServiceName:   field("service-name"),
			Address:       field("address"),
			StoreName:     field("store-name"),
			Instructions:  strings.TrimSpace(row.Find("td.instructions").Text()),
		}
		if wo.JobID == "" || wo.StoreNumber == "" {
			return
		}

		if m := visitDayPattern.FindStringSubmatch(field("visit")); m != nil {
			day, _ := strconv.Atoi(m[1])
			total, _ := strconv.Atoi(m[2])
			wo.DayNumber = day
			wo.IsMultiDay = total > 1
		}

		orders = append(orders, wo)
	})

	return orders
}

// parseDispensers extracts dispensers from a store's equipment page. The
// page nests one div per dispenser with its fuel grades as list items.
func parseDispensers(doc *goquery.Document, storeNumber string) []calculator.Dispenser {
	var dispensers []calculator.Dispenser

	doc.Find("div.dispenser").Each(func(_ int, node *goquery.Selection) {
		number := strings.TrimSpace(node.AttrOr("data-number", ""))
		if number == "" {
			return
		}

		d := calculator.Dispenser{
			StoreNumber:     storeNumber,
			DispenserNumber: number,
			MeterType:       strings.TrimSpace(node.AttrOr("data-meter-type", "Electronic")),
		}
		node.Find("li.fuel-grade").Each(func(_ int, li *goquery.Selection) {
			grade := strings.TrimSpace(li.Text())
			if grade == "" {
				return
			}
			d.FuelGrades = append(d.FuelGrades, calculator.FuelGrade{Grade: grade})
		})

		dispensers = append(dispensers, d)
	})

	return dispensers
}
