package jobs

import (
	"github.com/PuerkitoBio/goquery"
	textUtils "github.com/shouni/go-utils/text"

	"github.com/shouni/go-job-crawler/pkg/types"
)

const (
	job123BaseURL    = "https://123job.vn"
	job123ListingURL = job123BaseURL + "/tuyen-dung?sort=new&page={page}"
)

func init() {
	register(&Site{
		Name:          "123job",
		BaseURL:       job123BaseURL,
		ListingURL:    job123ListingURL,
		linkSelector:  "h2.job__list-item-title a[href]",
		extractDetail: extractGenericJob,
	})
}

// extractGenericJob は schema.org の JobPosting マークアップと一般的なクラス名から求人を抽出します。
func extractGenericJob(doc *goquery.Document) types.JobPosting {
	first := func(selectors ...string) string {
		for _, sel := range selectors {
			if v := textOf(doc, sel); v != "" {
				return v
			}
		}
		return ""
	}

	job := types.JobPosting{
		Title:       first("[itemprop=title]", "h1"),
		Company:     first("[itemprop=hiringOrganization] [itemprop=name]", "[itemprop=hiringOrganization]", ".company-name"),
		Salary:      first("[itemprop=baseSalary]", ".salary"),
		Location:    first("[itemprop=jobLocation]", ".address", ".location"),
		Experience:  first("[itemprop=experienceRequirements]", ".experience"),
		Deadline:    first("[itemprop=validThrough]", ".deadline"),
		Tags:        []string{},
		Description: map[string]string{},
	}

	doc.Find(".tags a, .job-tags a").Each(func(_ int, s *goquery.Selection) {
		if tag := textUtils.NormalizeText(s.Text()); tag != "" {
			job.Tags = append(job.Tags, tag)
		}
	})

	if desc := doc.Find("[itemprop=description]").First(); desc.Length() > 0 {
		job.Description["description"] = strippedStrings(desc)
	}
	return job
}
