// Package sources holds the catalog of listing sites a run walks through.
package sources

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jobharvest/harvester/internal/domain"
)

var builtin = []domain.Source{
	{Name: "LinkedIn", ListingURL: "https://www.linkedin.com/jobs/search/?keywords=software%20engineer&location=India"},
	{Name: "Indeed", ListingURL: "https://www.indeed.com/jobs?q=software%20engineer&l=India"},
	{Name: "LinkedIn", ListingURL: "https://www.linkedin.com/jobs/search/?keywords=software%20engineer%20intern%20full%20stack%20developer%20frontend%20developer%20devops%20backend%20engineer%20data%20analyst&location=India"},
	{Name: "Wellfound", ListingURL: "https://www.wellfound.com/jobs?role=software-engineer&role=full-stack-developer&role=frontend-developer&role=devops&role=backend-engineer&role=data-analyst&location=india"},
	{Name: "Naukri", ListingURL: "https://www.naukri.com/software-engineer-intern-full-stack-developer-frontend-developer-devops-backend-engineer-data-analyst-jobs-in-india"},
	{Name: "Indeed", ListingURL: "https://www.indeed.com/jobs?q=software%20engineer%20intern%20full%20stack%20developer%20frontend%20developer%20devops%20backend%20engineer%20data%20analyst&l=India"},
	{Name: "Glassdoor", ListingURL: "https://www.glassdoor.com/Job/india-software-engineer-intern-full-stack-developer-frontend-developer-devops-backend-engineer-data-analyst-jobs-SRCH_IL.0,5_IN.1_KO.6,77.htm"},
	{Name: "Monster", ListingURL: "https://www.monster.com/jobs/search?q=software+engineer+intern+full+stack+developer+frontend+developer+devops+backend+engineer+data+analyst&l=india"},
	{Name: "SimplyHired", ListingURL: "https://www.simplyhired.com/search?q=software+engineer+intern+full+stack+developer+frontend+developer+devops+backend+engineer+data+analyst&l=india"},
	{Name: "ZipRecruiter", ListingURL: "https://www.ziprecruiter.com/jobs-search?search=software+engineer+intern+full+stack+developer+frontend+developer+devops+backend+engineer+data+analyst&location=India"},
	{Name: "Shine", ListingURL: "https://www.shine.com/job-search/software-engineer-intern-full-stack-developer-frontend-developer-devops-backend-engineer-data-analyst-jobs-in-india"},
	{Name: "TimesJobs", ListingURL: "https://www.timesjobs.com/jobs-in-india/software-engineer-intern-full-stack-developer-frontend-developer-devops-backend-engineer-data-analyst-jobs"},
	{Name: "CareerBuilder", ListingURL: "https://www.careerbuilder.com/jobs?keywords=software+engineer+intern+full+stack+developer+frontend+developer+devops+backend+engineer+data+analyst&location=India"},
	{Name: "JobStreet", ListingURL: "https://www.jobstreet.com/jobs?keywords=software+engineer+intern+full+stack+developer+frontend+developer+devops+backend+engineer+data+analyst&location=india"},
	{Name: "Foundit", ListingURL: "https://www.foundit.in/search/software-engineer-intern-full-stack-developer-frontend-developer-devops-backend-engineer-data-analyst-jobs-in-india"},
	{Name: "Hirect", ListingURL: "https://hirect.in/jobs?search=software+engineer+intern+full+stack+developer+frontend+developer+devops+backend+engineer+data+analyst&location=India"},
	{Name: "AngelList", ListingURL: "https://www.angellist.com/jobs?keywords=software+engineer+intern+full+stack+developer+frontend+developer+devops+backend+engineer+data+analyst&location=India"},
	{Name: "Dice", ListingURL: "https://www.dice.com/jobs?q=software+engineer+intern+full+stack+developer+frontend+developer+devops+backend+engineer+data+analyst&l=India"},
	{Name: "Jooble", ListingURL: "https://in.jooble.org/jobs/software+engineer+intern+full+stack+developer+frontend+developer+devops+backend+engineer+data+analyst/India"},
	{Name: "Internshala", ListingURL: "https://internshala.com/internships/software-engineer-intern-full-stack-developer-frontend-developer-devops-backend-engineer-data-analyst-internship-in-india"},
	{Name: "Freshersworld", ListingURL: "https://www.freshersworld.com/jobs-in-india/software-engineer-intern-full-stack-developer-frontend-developer-devops-backend-engineer-data-analyst"},
	{Name: "WorkIndia", ListingURL: "https://www.workindia.in/jobs/software-engineer-intern-full-stack-developer-frontend-developer-devops-backend-engineer-data-analyst-in-india"},
}

// Default returns a copy of the built-in catalog.
func Default() []domain.Source {
	out := make([]domain.Source, len(builtin))
	copy(out, builtin)
	return out
}

type fileFormat struct {
	Sources []domain.Source `yaml:"sources"`
}

// Load returns the catalog from path, or the built-in one when path is empty.
func Load(path string) ([]domain.Source, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}

	list, err := Normalize(f.Sources)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("sources file %s lists no sources", path)
	}
	return list, nil
}

// Normalize validates every source and drops repeated listing URLs, keeping
// the first occurrence and the original order.
func Normalize(in []domain.Source) ([]domain.Source, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.Source, 0, len(in))
	for i, s := range in {
		s.Name = strings.TrimSpace(s.Name)
		s.ListingURL = strings.TrimSpace(s.ListingURL)
		if s.Name == "" {
			return nil, fmt.Errorf("source %d: name is required", i)
		}
		u, err := url.Parse(s.ListingURL)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return nil, fmt.Errorf("source %q: listing_url %q is not an absolute URL", s.Name, s.ListingURL)
		}
		if _, dup := seen[s.ListingURL]; dup {
			continue
		}
		seen[s.ListingURL] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}
