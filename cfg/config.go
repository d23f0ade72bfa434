package cfg

import (
	"flag"
	"io/ioutil"
	"os"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type argInfo struct {
	argPtr interface{}
	set    bool
}

func registerTypes(fs *flag.FlagSet, options interface{}, argPointers map[string]*argInfo) error {
	optionsType := reflect.TypeOf(options).Elem()
	optionsValue := reflect.ValueOf(options).Elem()

	for i := 0; i < optionsType.NumField(); i++ {
		field := optionsType.Field(i)
		if field.PkgPath != "" {
			continue
		}

		cliName, found := field.Tag.Lookup("cli")
		if !found {
			continue
		}
		cliDescription := field.Tag.Get("desc")

		// defaults shown in -help are the values already in the struct
		switch v := optionsValue.Field(i).Interface().(type) {
		case string:
			argPointers[cliName] = &argInfo{argPtr: fs.String(cliName, v, cliDescription)}
		case []string:
			argPointers[cliName] = &argInfo{argPtr: fs.String(cliName, strings.Join(v, ","), cliDescription)}
		case bool:
			argPointers[cliName] = &argInfo{argPtr: fs.Bool(cliName, v, cliDescription)}
		case int:
			argPointers[cliName] = &argInfo{argPtr: fs.Int(cliName, v, cliDescription)}
		case uint64:
			argPointers[cliName] = &argInfo{argPtr: fs.Uint64(cliName, v, cliDescription)}
		default:
			return errors.Errorf("type %s of option %s not handled", field.Type, field.Name)
		}
	}

	return nil
}

func checkForSet(fs *flag.FlagSet, argPointers map[string]*argInfo) {
	fs.Visit(func(f *flag.Flag) {
		if _, found := argPointers[f.Name]; found {
			argPointers[f.Name].set = true
		}
	})
}

func fillOptionsWithMap(options interface{}, argPointers map[string]*argInfo) {
	t := reflect.TypeOf(options).Elem()
	v := reflect.ValueOf(options).Elem()
	for i := 0; i < t.NumField(); i++ {
		cliName, found := t.Field(i).Tag.Lookup("cli")
		if !found {
			continue
		}

		ai, found := argPointers[cliName]
		if !found || !ai.set {
			continue
		}

		fv := v.Field(i)
		switch fv.Interface().(type) {
		case string:
			fv.SetString(*ai.argPtr.(*string))
		case []string:
			fv.Set(reflect.ValueOf(strings.Split(*ai.argPtr.(*string), ",")))
		case bool:
			fv.SetBool(*ai.argPtr.(*bool))
		case int:
			fv.SetInt(int64(*ai.argPtr.(*int)))
		case uint64:
			fv.SetUint(*ai.argPtr.(*uint64))
		}
	}
}

// LoadFlags loads 2 sets of options from the command line: global options
// defined by the GlobalOptions struct and local options provided by the
// passed moduleOptions parameter.
func LoadFlags(moduleOptions interface{}, globalOptions *GlobalOptions) error {
	return LoadFlagSet(flag.CommandLine, os.Args[1:], moduleOptions, globalOptions)
}

// LoadFlagSet is LoadFlags with an explicit flag set and arguments. Values
// are applied in order: struct defaults, the config file named by -config,
// then flags set on the command line.
func LoadFlagSet(fs *flag.FlagSet, args []string, moduleOptions interface{}, globalOptions *GlobalOptions) error {
	argPointers := make(map[string]*argInfo)

	if err := registerTypes(fs, moduleOptions, argPointers); err != nil {
		return err
	}
	if err := registerTypes(fs, globalOptions, argPointers); err != nil {
		return err
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	checkForSet(fs, argPointers)

	// special config key needed for loading config file
	// this loads everything from the config file
	if ap, found := argPointers["config"]; found && ap.set {
		configFile := *ap.argPtr.(*string)

		configBytes, err := ioutil.ReadFile(configFile)
		if err != nil {
			return errors.Wrapf(err, "could not read config file %s", configFile)
		}
		if err := yaml.Unmarshal(configBytes, globalOptions); err != nil {
			return errors.Wrapf(err, "could not parse config file %s", configFile)
		}
		if err := yaml.Unmarshal(configBytes, moduleOptions); err != nil {
			return errors.Wrapf(err, "could not parse config file %s", configFile)
		}
	}

	fillOptionsWithMap(moduleOptions, argPointers)
	fillOptionsWithMap(globalOptions, argPointers)

	return nil
}
