package provider

import "io"

// progressReader reports the percentage of a known-size payload as it is
// consumed. Reports are emitted only when the whole percent changes, so a
// multi-gigabyte transfer produces at most 100 callbacks.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report ProgressFunc
}

// newProgressReader wraps r; with no callback or an unknown size the reader
// is returned unwrapped.
func newProgressReader(r io.Reader, total int64, report ProgressFunc) io.Reader {
	if report == nil || total <= 0 {
		return r
	}
	return &progressReader{r: r, total: total, report: report}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.read += int64(n)
		pct := int(pr.read * 100 / pr.total)
		if pct > 100 {
			pct = 100
		}
		if pct > pr.last {
			pr.last = pct
			pr.report(pct)
		}
	}
	return n, err
}
