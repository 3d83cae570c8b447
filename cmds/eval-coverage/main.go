package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"text/tabwriter"

	"github.com/SarahQiong/conformal-classification/envutil"
	"github.com/SarahQiong/conformal-classification/fileutil"
	"github.com/SarahQiong/conformal-classification/logits"
	"github.com/SarahQiong/conformal-classification/metrics"
	"github.com/alexflint/go-arg"
	"github.com/gocarina/gocsv"
)

func fail(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

type record struct {
	Model        string  `csv:"model"`
	Dataset      string  `csv:"dataset"`
	Level        float64 `csv:"level"`
	Coverage     float64 `csv:"coverage"`
	AvgSize      float64 `csv:"avg_size"`
	ClsCvgMin    float64 `csv:"cls_cvg_min"`
	ClsCvgMax    float64 `csv:"cls_cvg_max"`
	ClsCvgMedian float64 `csv:"cls_cvg_median"`
	ClsSzMin     float64 `csv:"cls_sz_min"`
	ClsSzMax     float64 `csv:"cls_sz_max"`
	ClsSzMedian  float64 `csv:"cls_sz_median"`
}

func main() {
	args := struct {
		Model         string `arg:"positional,required"`
		Dataset       string `arg:"positional,required"`
		DatasetPath   string `arg:"positional,required"`
		CacheRoot     string
		BatchSize     int
		Temperature   float64   `help:"temperature for softmax scaling of the cached logits"`
		Levels        []float64 `help:"cumulative-mass thresholds to evaluate"`
		NumValidation int       `help:"evaluate on a random subset of this many examples (0 = all)"`
		Seed          int64
		OutCSV        string `help:"optional path (local or s3://) for a CSV report"`
	}{
		CacheRoot:   logits.DefaultCacheRoot(),
		BatchSize:   envutil.GetenvDefaultInt("CONFORMAL_BATCH", 32),
		Temperature: 1.0,
		Levels:      []float64{0.9, 0.95, 0.99},
		Seed:        0,
	}
	arg.MustParse(&args)

	store := logits.Store{Root: args.CacheRoot}
	ds, err := logits.GetOrCompute(store, args.Model, args.Dataset, args.DatasetPath, logits.Options{
		BatchSize: args.BatchSize,
	})
	fail(err)

	if args.NumValidation > 0 && args.NumValidation < ds.Len() {
		rng := rand.New(rand.NewSource(args.Seed))
		_, ds, err = logits.Split(ds, ds.Len()-args.NumValidation, args.NumValidation, rng)
		fail(err)
	}

	accs, err := metrics.Accuracy(ds.Logits, ds.Labels, 1, 5)
	fail(err)
	fmt.Printf("%s on %s: %d examples, top1 %.3f%%, top5 %.3f%%\n",
		args.Model, args.Dataset, ds.Len(), accs[0], accs[1])

	scores, err := metrics.Softmax(ds.Logits, args.Temperature)
	fail(err)

	var records []record
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "Level\tCvg\tSz\tClsCvgMin\tClsCvgMax\tClsCvgMed\tClsSzMin\tClsSzMax\tClsSzMed")
	for _, level := range args.Levels {
		sets := metrics.ThresholdSets(scores, level)
		sum, err := metrics.CoverageSize(sets, ds.Labels)
		fail(err)

		fmt.Fprintf(w, "%.2f\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\n",
			level, sum.Coverage, sum.AvgSize,
			sum.ClassCoverage.Min, sum.ClassCoverage.Max, sum.ClassCoverage.Median,
			sum.ClassSize.Min, sum.ClassSize.Max, sum.ClassSize.Median)

		records = append(records, record{
			Model:        args.Model,
			Dataset:      args.Dataset,
			Level:        level,
			Coverage:     sum.Coverage,
			AvgSize:      sum.AvgSize,
			ClsCvgMin:    sum.ClassCoverage.Min,
			ClsCvgMax:    sum.ClassCoverage.Max,
			ClsCvgMedian: sum.ClassCoverage.Median,
			ClsSzMin:     sum.ClassSize.Min,
			ClsSzMax:     sum.ClassSize.Max,
			ClsSzMedian:  sum.ClassSize.Median,
		})
	}
	fail(w.Flush())

	if args.OutCSV != "" {
		out, err := fileutil.NewBufferedWriter(args.OutCSV)
		fail(err)
		fail(gocsv.Marshal(&records, out))
		fail(out.Close())
	}
}
