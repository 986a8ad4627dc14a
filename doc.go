/*
Copyright © 2026 the CropMAP authors.
This file is part of CropMAP.

CropMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

CropMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with CropMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package cropmap implements the core data model and deterministic science
// for the (Crop) (M)onitoring and (A)nalysis (P)ipeline: vegetation-index
// statistics, stress indicators, health scoring, management-zone
// partitioning, and trend analysis for agricultural fields.
//
// The per-field and per-farm pipelines that feed this package live in the
// analysis subpackage; alert evaluation and variable-rate planning live in
// the alerts and plan subpackages.
package cropmap

// Version gives the version number.
const Version = "0.3.1"
