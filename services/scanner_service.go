package services

import (
	"regexp"
	"sort"
	"strings"

	"github.com/WeMakeGood/mg-asset-download/domain"
)

// Tag matching is deliberately regex-based rather than a structural HTML
// parse: substitution happens on the exact matched span, so every byte of
// the surrounding markup survives untouched. Malformed nested markup can
// defeat span matching; the corpus is assumed well-formed.
var (
	imgTagPattern   = regexp.MustCompile(`(?i)<img[^>]+src=['"]([^'"]+)['"][^>]*>`)
	fileLinkPattern = regexp.MustCompile(`(?i)<a[^>]+href=['"]([^'"]+\.(?:pdf|docx?|xlsx?|pptx?|zip|rar))['"][^>]*>(.*?)</a>`)
)

type ScannerService struct {
	siteBaseURL   string
	assetsBaseURL string
}

// NewScannerService builds a scanner that treats URLs under siteBaseURL or
// assetsBaseURL as already local and skips them. The assets base must be
// covered independently: rewritten references point there, and it is not
// required to live under the site base.
func NewScannerService(siteBaseURL, assetsBaseURL string) *ScannerService {
	return &ScannerService{
		siteBaseURL:   siteBaseURL,
		assetsBaseURL: assetsBaseURL,
	}
}

func (s *ScannerService) isLocal(url string) bool {
	if strings.HasPrefix(url, s.siteBaseURL) {
		return true
	}
	return s.assetsBaseURL != "" && strings.HasPrefix(url, s.assetsBaseURL)
}

// Scan finds external image and file-link references in a document body,
// in document order.
func (s *ScannerService) Scan(body string) []domain.ExternalReference {
	refs := []domain.ExternalReference{}

	for _, m := range imgTagPattern.FindAllStringSubmatchIndex(body, -1) {
		url := body[m[2]:m[3]]
		if s.isLocal(url) {
			continue
		}
		refs = append(refs, domain.ExternalReference{
			Kind:  domain.RefKindImage,
			Tag:   body[m[0]:m[1]],
			URL:   url,
			Start: m[0],
			End:   m[1],
		})
	}

	for _, m := range fileLinkPattern.FindAllStringSubmatchIndex(body, -1) {
		url := body[m[2]:m[3]]
		if s.isLocal(url) {
			continue
		}
		refs = append(refs, domain.ExternalReference{
			Kind:  domain.RefKindFile,
			Tag:   body[m[0]:m[1]],
			URL:   url,
			Start: m[0],
			End:   m[1],
		})
	}

	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Start < refs[j].Start
	})

	return refs
}

// Rewrite replaces every occurrence of each substitution's matched span
// with the same span where only the URL is swapped for the local one. A
// span no longer present in the body is left alone.
func (s *ScannerService) Rewrite(body string, subs []domain.Substitution) string {
	for _, sub := range subs {
		newTag := strings.ReplaceAll(sub.Reference.Tag, sub.Reference.URL, sub.LocalURL)
		body = strings.ReplaceAll(body, sub.Reference.Tag, newTag)
	}
	return body
}
