// caveconvert converts PocketTopo .TXT survey exports to Compass .DAT
// data files and prints summaries of Compass .MAK/.DAT inputs.
//
// usage: caveconvert [-config FILE] [-no-splays] [-lrud] [-v] FILE...
//
// Each .TXT input produces a sibling .DAT output file. The process exits
// non-zero if any input fails to parse.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/speleotools/caveconv/internal/compass"
	"github.com/speleotools/caveconv/internal/convert"
	"github.com/speleotools/caveconv/internal/pockettopo"
	"github.com/speleotools/caveconv/pkg/util"
)

// --- configuration structures ---
type config struct {
	Convert struct {
		ExcludeSplays     bool    `yaml:"exclude_splays"`
		CalculateLRUD     bool    `yaml:"calculate_lrud"`
		LRUDCone          float64 `yaml:"lrud_cone"`
		VerticalThreshold float64 `yaml:"vertical_threshold"`
	} `yaml:"convert"`
	LogLevel string `yaml:"log_level"`
}

func main() {
	cfgPath := flag.String("config", "", "optional YAML configuration file")
	noSplays := flag.Bool("no-splays", false, "exclude splay shots from conversion output")
	lrud := flag.Bool("lrud", false, "calculate LRUD values from splay shots")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"usage: %s [-config FILE] [-no-splays] [-lrud] [-v] FILE...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	opts := convert.DefaultOptions()
	logLevel := logrus.InfoLevel
	if *cfgPath != "" {
		cfg, err := util.LoadConfig[config](*cfgPath)
		if err != nil {
			logrus.Fatalf("Error reading configuration file: %v", err)
		}
		opts.ExcludeSplays = cfg.Convert.ExcludeSplays
		opts.CalculateLRUD = cfg.Convert.CalculateLRUD
		if cfg.Convert.LRUDCone > 0 {
			opts.LRUDCone = cfg.Convert.LRUDCone
		}
		if cfg.Convert.VerticalThreshold > 0 {
			opts.VerticalThreshold = cfg.Convert.VerticalThreshold
		}
		if cfg.LogLevel != "" {
			lvl, err := logrus.ParseLevel(cfg.LogLevel)
			if err != nil {
				logrus.Fatalf("Invalid log_level in configuration file: %v", err)
			}
			logLevel = lvl
		}
	}
	// Command line flags override the configuration file.
	if *noSplays {
		opts.ExcludeSplays = true
	}
	if *lrud {
		opts.CalculateLRUD = true
	}
	if *verbose {
		logLevel = logrus.DebugLevel
	}
	logrus.SetLevel(logLevel)

	failed := false
	for _, fname := range flag.Args() {
		if err := processFile(fname, opts); err != nil {
			logrus.WithError(err).Errorf("Failed to process %s", fname)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func processFile(fname string, opts convert.Options) error {
	switch strings.ToLower(filepath.Ext(fname)) {
	case ".txt":
		return convertTxt(fname, opts)
	case ".dat":
		dat, err := compass.ParseDat(fname)
		if err != nil {
			return err
		}
		logrus.Infof("%s: %d surveys, %.1f total length", dat.Name, dat.Len(), dat.Length())
		return nil
	case ".mak":
		proj, err := compass.ParseProject(fname)
		if err != nil {
			return err
		}
		logrus.Infof("Project %s: %d linked files", proj.Name, proj.Len())
		if proj.BaseLocation != nil {
			logrus.Infof("  base location %s", proj.BaseLocation)
		}
		for _, dat := range proj.LinkedFiles {
			logrus.Infof("  %s: %d surveys, %.1f total length", dat.Name, dat.Len(), dat.Length())
		}
		return nil
	default:
		return fmt.Errorf("unsupported file type: %s", fname)
	}
}

func convertTxt(fname string, opts convert.Options) error {
	logrus.Infof("Converting PocketTopo data file %s ...", fname)
	txt, err := pockettopo.ParseTxt(fname)
	if err != nil {
		return err
	}
	for _, d := range txt.Diagnostics {
		logrus.Warnf("diagnostic: %s", d)
	}

	dat, err := convert.New(opts).ConvertFile(txt)
	if err != nil {
		return err
	}

	outname := strings.TrimSuffix(fname, filepath.Ext(fname)) + ".DAT"
	if err := dat.WriteFile(outname); err != nil {
		return err
	}
	logrus.Infof("Wrote Compass data file %s", outname)
	return nil
}
