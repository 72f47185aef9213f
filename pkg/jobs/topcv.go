package jobs

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	textUtils "github.com/shouni/go-utils/text"

	"github.com/shouni/go-job-crawler/pkg/types"
)

const (
	topcvBaseURL    = "https://www.topcv.vn"
	topcvListingURL = topcvBaseURL + "/tim-viec-lam-moi-nhat?sort=new&type_keyword=1&page={page}&sba=1"

	deadlinePrefix = "Hạn nộp hồ sơ:"

	headingWorkplace   = "Địa điểm làm việc"
	headingWorkingTime = "Thời gian làm việc"
	headingApplyMethod = "Cách thức ứng tuyển"
)

func init() {
	register(&Site{
		Name:          "topcv",
		BaseURL:       topcvBaseURL,
		ListingURL:    topcvListingURL,
		linkSelector:  "div.job-item-search-result h3.title a[href]",
		extractDetail: extractTopCVJob,
	})
}

// extractTopCVJob は TopCV の求人詳細ページから各項目を抽出します。
func extractTopCVJob(doc *goquery.Document) types.JobPosting {
	job := types.JobPosting{
		Title:      textOf(doc, "h1.job-detail__info--title"),
		Salary:     textOf(doc, ".job-detail__info--section-content-value"),
		Location:   textOf(doc, "#header-job-info .job-detail__info--section:nth-of-type(2) .job-detail__info--section-content-value"),
		Experience: textOf(doc, "#job-detail-info-experience .job-detail__info--section-content-value"),
		Deadline:   strings.TrimSpace(strings.Replace(textOf(doc, ".job-detail__info--deadline"), deadlinePrefix, "", 1)),
		Tags:       []string{},
	}

	// 1. 会社名
	job.Company = textOf(doc, ".company-name-label a")
	if job.Company == "" {
		job.Company = textOf(doc, ".job-detail__company--information-item .company-name")
	}

	// 2. タグ
	doc.Find(".job-tags a").Each(func(_ int, s *goquery.Selection) {
		if tag := textUtils.NormalizeText(s.Text()); tag != "" {
			job.Tags = append(job.Tags, tag)
		}
	})

	// 3. 求人内容のセクション (見出し → 本文)
	job.Description = map[string]string{}
	doc.Find(".job-description__item").Each(func(_ int, s *goquery.Selection) {
		title := textUtils.NormalizeText(s.Find("h3").First().Text())
		content := s.Find(".job-description__item--content").First()
		if title == "" || content.Length() == 0 {
			return
		}
		job.Description[title] = strippedStrings(content)
	})

	// 4. 見出しで位置が決まる追加情報
	job.Workplace = textAfterHeading(doc, headingWorkplace)
	job.WorkingTime = textAfterHeading(doc, headingWorkingTime)
	job.ApplyMethod = textAfterHeading(doc, headingApplyMethod)

	return job
}
