// Copyright (C) 2019-2026 Algorand, Inc.
// This file is part of go-dpos
//
// go-dpos is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-dpos is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-dpos.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"reflect"
	"strconv"
)

// migrate moves cfg to the latest version. A field is upgraded only if it
// still holds the default of the version being migrated from.
func migrate(cfg Local) (newCfg Local, err error) {
	newCfg = cfg
	latestConfigVersion := getLatestConfigVersion()

	if cfg.Version > latestConfigVersion {
		err = fmt.Errorf("unexpected config version: %d", cfg.Version)
		return
	}

	localType := reflect.TypeOf(Local{})
	for newCfg.Version < latestConfigVersion {
		defaultCurrentConfig := GetVersionedDefaultLocalConfig(newCfg.Version)
		nextVersion := newCfg.Version + 1
		current := reflect.ValueOf(&newCfg).Elem()
		defaults := reflect.ValueOf(&defaultCurrentConfig).Elem()
		for fieldNum := 0; fieldNum < localType.NumField(); fieldNum++ {
			field := localType.Field(fieldNum)
			nextVersionDefaultValue, hasTag := field.Tag.Lookup(fmt.Sprintf("version[%d]", nextVersion))
			if !hasTag {
				continue
			}
			if !reflect.DeepEqual(current.Field(fieldNum).Interface(), defaults.Field(fieldNum).Interface()) {
				continue
			}
			if err = setFieldFromTag(current.Field(fieldNum), nextVersionDefaultValue); err != nil {
				return cfg, fmt.Errorf("migrating %s: %w", field.Name, err)
			}
		}
	}
	return
}

func getLatestConfigVersion() uint32 {
	versionField, found := reflect.TypeOf(Local{}).FieldByName("Version")
	if !found {
		return 0
	}
	version := uint32(0)
	for {
		_, hasTag := versionField.Tag.Lookup(fmt.Sprintf("version[%d]", version+1))
		if !hasTag {
			return version
		}
		version++
	}
}

// GetVersionedDefaultLocalConfig returns the default config for the given version.
func GetVersionedDefaultLocalConfig(version uint32) (local Local) {
	if version > 0 {
		local = GetVersionedDefaultLocalConfig(version - 1)
	}
	localType := reflect.TypeOf(local)
	value := reflect.ValueOf(&local).Elem()
	for fieldNum := 0; fieldNum < localType.NumField(); fieldNum++ {
		field := localType.Field(fieldNum)
		versionDefaultValue, hasTag := field.Tag.Lookup(fmt.Sprintf("version[%d]", version))
		if !hasTag {
			continue
		}
		if err := setFieldFromTag(value.Field(fieldNum), versionDefaultValue); err != nil {
			panic(fmt.Sprintf("config.Local field %s: %v", field.Name, err))
		}
	}
	return
}

func setFieldFromTag(field reflect.Value, tag string) error {
	switch field.Kind() {
	case reflect.Bool:
		v, err := strconv.ParseBool(tag)
		if err != nil {
			return err
		}
		field.SetBool(v)
	case reflect.Int, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(tag, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(v)
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(tag, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(v)
	case reflect.String:
		field.SetString(tag)
	default:
		return fmt.Errorf("unsupported data type %s", field.Kind())
	}
	return nil
}
