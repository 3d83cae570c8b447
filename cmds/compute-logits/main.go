package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/SarahQiong/conformal-classification/envutil"
	"github.com/SarahQiong/conformal-classification/imagenet"
	"github.com/SarahQiong/conformal-classification/logits"
	"github.com/SarahQiong/conformal-classification/metrics"
	"github.com/alexflint/go-arg"
)

func fail(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	args := struct {
		Model       string `arg:"positional,required" help:"pretrained architecture name"`
		Dataset     string `arg:"positional,required" help:"dataset name used as the cache key"`
		DatasetPath string `arg:"positional,required" help:"path to a class-labeled image folder"`
		CacheRoot   string
		BatchSize   int
	}{
		CacheRoot: logits.DefaultCacheRoot(),
		BatchSize: envutil.GetenvDefaultInt("CONFORMAL_BATCH", 32),
	}
	arg.MustParse(&args)

	if _, err := imagenet.Get(args.Model); err != nil {
		log.Fatalf("%v (known models: %s)", err, strings.Join(imagenet.Names(), ", "))
	}

	store := logits.Store{Root: args.CacheRoot}
	ds, err := logits.GetOrCompute(store, args.Model, args.Dataset, args.DatasetPath, logits.Options{
		BatchSize: args.BatchSize,
	})
	fail(err)

	accs, err := metrics.Accuracy(ds.Logits, ds.Labels, 1, 5)
	fail(err)

	fmt.Printf("%s on %s: %d examples, top1 %.3f%%, top5 %.3f%%\n",
		args.Model, args.Dataset, ds.Len(), accs[0], accs[1])
	fmt.Printf("cached at %s\n", store.Path(logits.Key{Dataset: args.Dataset, Model: args.Model}))

	if cached, err := store.List(args.Dataset); err == nil && len(cached) > 1 {
		fmt.Printf("models cached for %s: %s\n", args.Dataset, strings.Join(cached, ", "))
	}
}
